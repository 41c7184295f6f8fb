package store

import (
	"sort"
	"sync"

	"chatvault/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and mirrors the
// GormStore contract.
type MemoryStore struct {
	mu            sync.RWMutex
	jobs          map[string]domain.ImportJob
	conversations map[string]domain.Conversation
	participants  map[string][]domain.Participant // by conversation id
	messages      map[string][]domain.Message     // by conversation id
	media         map[string]domain.MediaFile
	mediaOrder    []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:          make(map[string]domain.ImportJob),
		conversations: make(map[string]domain.Conversation),
		participants:  make(map[string][]domain.Participant),
		messages:      make(map[string][]domain.Message),
		media:         make(map[string]domain.MediaFile),
	}
}

// CreateImportJob stores a new job.
func (m *MemoryStore) CreateImportJob(job domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

// SaveImportJob replaces a job record.
func (m *MemoryStore) SaveImportJob(job domain.ImportJob) error {
	return m.CreateImportJob(job)
}

// GetImportJob returns a job by id.
func (m *MemoryStore) GetImportJob(id string) (domain.ImportJob, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok, nil
}

// ListImportJobs returns jobs newest first.
func (m *MemoryStore) ListImportJobs(limit int) ([]domain.ImportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]domain.ImportJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// CreateConversation stores a conversation with its participants.
func (m *MemoryStore) CreateConversation(conv domain.Conversation, participants []domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conv.ID] = conv
	m.participants[conv.ID] = append([]domain.Participant(nil), participants...)
	return nil
}

// GetConversation returns one conversation by id.
func (m *MemoryStore) GetConversation(id string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	return conv, ok, nil
}

// ListConversations returns conversations newest first.
func (m *MemoryStore) ListConversations(limit int) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	convs := make([]domain.Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		convs = append(convs, conv)
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].CreatedAt.After(convs[j].CreatedAt) })
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

// DeleteConversation removes a conversation and its dependent records.
func (m *MemoryStore) DeleteConversation(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages[id] {
		for mediaID, media := range m.media {
			if media.MessageID == msg.ID {
				delete(m.media, mediaID)
			}
		}
	}
	delete(m.conversations, id)
	delete(m.participants, id)
	delete(m.messages, id)
	for jobID, job := range m.jobs {
		if job.ConversationID == id {
			job.ConversationID = ""
			m.jobs[jobID] = job
		}
	}
	return nil
}

// ListParticipants returns participants sorted by name.
func (m *MemoryStore) ListParticipants(conversationID string) ([]domain.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	parts := append([]domain.Participant(nil), m.participants[conversationID]...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })
	return parts, nil
}

// AddMessages appends a batch of messages.
func (m *MemoryStore) AddMessages(msgs []domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	}
	return nil
}

// ListMessages returns messages in chronological order.
func (m *MemoryStore) ListMessages(conversationID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := append([]domain.Message(nil), m.messages[conversationID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// CreateMediaFile stores a media record.
func (m *MemoryStore) CreateMediaFile(media domain.MediaFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.media[media.ID]; !exists {
		m.mediaOrder = append(m.mediaOrder, media.ID)
	}
	m.media[media.ID] = media
	return nil
}

// GetMediaFile returns a media record by id.
func (m *MemoryStore) GetMediaFile(id string) (domain.MediaFile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	media, ok := m.media[id]
	return media, ok, nil
}

// ListMediaFiles returns media rows for a conversation in insertion order.
func (m *MemoryStore) ListMediaFiles(conversationID string) ([]domain.MediaFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	messageIDs := make(map[string]struct{})
	for _, msg := range m.messages[conversationID] {
		messageIDs[msg.ID] = struct{}{}
	}
	var media []domain.MediaFile
	for _, id := range m.mediaOrder {
		file, ok := m.media[id]
		if !ok {
			continue
		}
		if _, ok := messageIDs[file.MessageID]; ok {
			media = append(media, file)
		}
	}
	return media, nil
}
