package app

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatvault/internal/util"
	"chatvault/pkg/domain"
	"chatvault/pkg/storage"
)

func mediaObjectKey(conversationID, filename string) string {
	return fmt.Sprintf("conversations/%s/media/%s", conversationID, filename)
}

func conversationObjectPrefix(conversationID string) string {
	return fmt.Sprintf("conversations/%s/", conversationID)
}

// CreateImportJob registers a chunked upload and returns the job in
// uploading state.
func (a *App) CreateImportJob(ctx context.Context, filename string, fileSize int64, totalChunks int) (domain.ImportJob, error) {
	if strings.TrimSpace(filename) == "" {
		return domain.ImportJob{}, fmt.Errorf("filename is required")
	}
	if totalChunks < 1 {
		return domain.ImportJob{}, fmt.Errorf("total_chunks must be at least 1")
	}
	now := time.Now().UTC()
	job := domain.ImportJob{
		ID:          uuid.NewString(),
		Filename:    filename,
		FileSize:    fileSize,
		TotalChunks: totalChunks,
		Status:      domain.JobUploading,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.CreateImportJob(job); err != nil {
		return domain.ImportJob{}, fmt.Errorf("create import job: %w", err)
	}
	return job, nil
}

// UploadChunk stores one chunk of a job's file. Re-uploading an index is
// allowed while the job is still uploading; once every chunk is present the
// file is assembled and the job moves to pending.
func (a *App) UploadChunk(ctx context.Context, jobID string, index int, data []byte) (domain.ImportJob, error) {
	job, found, err := a.store.GetImportJob(jobID)
	if err != nil {
		return domain.ImportJob{}, err
	}
	if !found {
		return domain.ImportJob{}, ErrJobNotFound
	}
	if job.Status != domain.JobUploading {
		return domain.ImportJob{}, fmt.Errorf("%w: status is %s", ErrJobNotReady, job.Status)
	}
	if index < 0 || index >= job.TotalChunks {
		return domain.ImportJob{}, fmt.Errorf("chunk index %d out of range [0,%d)", index, job.TotalChunks)
	}

	if err := a.uploads.PutChunk(ctx, jobID, index, data); err != nil {
		return domain.ImportJob{}, err
	}
	count, complete, err := a.uploads.IsComplete(ctx, jobID, job.TotalChunks)
	if err != nil {
		return domain.ImportJob{}, err
	}
	job.UploadedChunks = count
	if complete {
		key, err := a.uploads.Assemble(ctx, jobID, job.TotalChunks)
		if err != nil {
			return domain.ImportJob{}, err
		}
		job.TempStorageKey = key
		job.Status = domain.JobPending
	}
	job.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveImportJob(job); err != nil {
		return domain.ImportJob{}, fmt.Errorf("save import job: %w", err)
	}
	return job, nil
}

// SimpleUpload accepts a whole file in one request, creates its job in
// pending state, and enqueues it for processing immediately.
func (a *App) SimpleUpload(ctx context.Context, filename string, data []byte) (domain.ImportJob, error) {
	if strings.TrimSpace(filename) == "" {
		return domain.ImportJob{}, fmt.Errorf("filename is required")
	}
	now := time.Now().UTC()
	job := domain.ImportJob{
		ID:             uuid.NewString(),
		Filename:       filename,
		FileSize:       int64(len(data)),
		TotalChunks:    1,
		UploadedChunks: 1,
		Status:         domain.JobPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	job.TempStorageKey = uploadObjectKey(job.ID)
	if err := storage.PutBytes(ctx, a.objects, job.TempStorageKey, data, "application/octet-stream"); err != nil {
		return domain.ImportJob{}, fmt.Errorf("store upload: %w", err)
	}
	if err := a.store.CreateImportJob(job); err != nil {
		return domain.ImportJob{}, fmt.Errorf("create import job: %w", err)
	}
	if err := a.queue.Enqueue(ctx, job.ID); err != nil {
		return domain.ImportJob{}, fmt.Errorf("enqueue import job: %w", err)
	}
	return job, nil
}

// StartImport enqueues a fully uploaded job for background processing.
func (a *App) StartImport(ctx context.Context, jobID string) (domain.ImportJob, error) {
	job, found, err := a.store.GetImportJob(jobID)
	if err != nil {
		return domain.ImportJob{}, err
	}
	if !found {
		return domain.ImportJob{}, ErrJobNotFound
	}
	if job.Status != domain.JobPending {
		return domain.ImportJob{}, fmt.Errorf("%w: status is %s", ErrJobNotReady, job.Status)
	}
	if err := a.queue.Enqueue(ctx, job.ID); err != nil {
		return domain.ImportJob{}, fmt.Errorf("enqueue import job: %w", err)
	}
	return job, nil
}

// GetJob returns one import job.
func (a *App) GetJob(ctx context.Context, jobID string) (domain.ImportJob, error) {
	job, found, err := a.store.GetImportJob(jobID)
	if err != nil {
		return domain.ImportJob{}, err
	}
	if !found {
		return domain.ImportJob{}, ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns recent import jobs, newest first.
func (a *App) ListJobs(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	return a.store.ListImportJobs(limit)
}

// JobProgress reports a job's progress percentage and counters.
func (a *App) JobProgress(ctx context.Context, jobID string) (Progress, error) {
	job, err := a.GetJob(ctx, jobID)
	if err != nil {
		return Progress{}, err
	}
	return jobProgress(job), nil
}

// ProcessImport is the queue handler: it runs the full import of one job
// and records the outcome on the job row. A job that is not pending is
// skipped, so duplicate queue deliveries are harmless.
func (a *App) ProcessImport(ctx context.Context, jobID string) error {
	logger := util.LoggerFromContext(ctx).With("job_id", jobID)

	job, found, err := a.store.GetImportJob(jobID)
	if err != nil {
		return err
	}
	if !found {
		return ErrJobNotFound
	}
	if job.Status != domain.JobPending {
		logger.Warn("skipping import job in unexpected status", "status", job.Status)
		return nil
	}

	job.Status = domain.JobProcessing
	job.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveImportJob(job); err != nil {
		return fmt.Errorf("save import job: %w", err)
	}

	runErr := a.runImport(ctx, &job)

	now := time.Now().UTC()
	if runErr != nil {
		job.Status = domain.JobFailed
		if job.ErrorMessage == "" {
			job.ErrorMessage = runErr.Error()
		}
		logger.Error("import failed", "error", runErr)
	} else {
		job.Status = domain.JobCompleted
		logger.Info("import completed",
			"conversation_id", job.ConversationID,
			"messages", job.ProcessedMessages,
			"media", job.ProcessedMedia)
	}
	job.CompletedAt = &now
	job.UpdatedAt = now

	// The assembled upload is temporary either way.
	if job.TempStorageKey != "" {
		if err := a.objects.Delete(ctx, job.TempStorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("failed to delete temporary upload", "key", job.TempStorageKey, "error", err)
		}
		job.TempStorageKey = ""
	}
	if err := a.store.SaveImportJob(job); err != nil {
		return fmt.Errorf("save import job: %w", err)
	}
	return runErr
}

func (a *App) runImport(ctx context.Context, job *domain.ImportJob) error {
	if job.TempStorageKey == "" {
		return fmt.Errorf("job has no uploaded file")
	}
	data, err := a.objects.Get(ctx, job.TempStorageKey)
	if err != nil {
		return fmt.Errorf("read uploaded file: %w", err)
	}
	if strings.EqualFold(path.Ext(job.Filename), ".zip") {
		return a.importArchive(ctx, job, data)
	}
	return a.importTranscript(ctx, job, data)
}

// importTranscript ingests a bare chat text export.
func (a *App) importTranscript(ctx context.Context, job *domain.ImportJob, data []byte) error {
	msgs := parseTranscript(string(data))
	if len(msgs) == 0 {
		return ErrNoMessages
	}

	name := conversationNameFromFilename(job.Filename)
	conv, participants := buildConversation(name, msgs)
	if err := a.store.CreateConversation(conv, participants); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	job.ConversationID = conv.ID
	job.TotalMessages = len(msgs)
	job.TotalMedia = 0
	job.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveImportJob(*job); err != nil {
		return fmt.Errorf("save import job: %w", err)
	}

	_, err := a.insertMessages(ctx, job, conv.ID, participants, msgs)
	return err
}

// importArchive ingests a zip export: transcript plus accompanying media.
func (a *App) importArchive(ctx context.Context, job *domain.ImportJob, data []byte) error {
	archive, err := readChatArchive(data)
	if err != nil {
		return err
	}

	rc, err := archive.Transcript.Open()
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	msgs, err := parseTranscriptReader(rc)
	rc.Close()
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return ErrNoMessages
	}

	name := conversationNameFromFilename(archive.Transcript.Name)
	conv, participants := buildConversation(name, msgs)
	if err := a.store.CreateConversation(conv, participants); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	job.ConversationID = conv.ID
	job.TotalMessages = len(msgs)
	job.TotalMedia = len(archive.Media)
	job.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveImportJob(*job); err != nil {
		return fmt.Errorf("save import job: %w", err)
	}

	mediaIndex, err := a.insertMessages(ctx, job, conv.ID, participants, msgs)
	if err != nil {
		return err
	}
	return a.importMedia(ctx, job, conv.ID, archive.Media, mediaIndex)
}

// buildConversation derives the conversation record and its participants
// from the parsed messages. Participant colors are assigned by rank in the
// lexicographic sort of sender names, so repeated imports of the same chat
// always color senders the same way.
func buildConversation(name string, msgs []ParsedMessage) (domain.Conversation, []domain.Participant) {
	now := time.Now().UTC()

	senderCounts := make(map[string]int)
	stats := make(map[string]int)
	var first, last time.Time
	for i, m := range msgs {
		stats[string(m.Type)]++
		if !m.IsSystem && m.Sender != "" {
			senderCounts[m.Sender]++
		}
		if i == 0 || m.Timestamp.Before(first) {
			first = m.Timestamp
		}
		if i == 0 || m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}

	senders := make([]string, 0, len(senderCounts))
	for s := range senderCounts {
		senders = append(senders, s)
	}
	sort.Strings(senders)

	conv := domain.Conversation{
		ID:           uuid.NewString(),
		Name:         name,
		IsGroup:      len(senders) > 2,
		MessageCount: len(msgs),
		Stats:        stats,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if len(msgs) > 0 {
		f, l := first, last
		conv.FirstMessageAt = &f
		conv.LastMessageAt = &l
	}

	participants := make([]domain.Participant, 0, len(senders))
	for i, s := range senders {
		participants = append(participants, domain.Participant{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Name:           s,
			Color:          domain.ColorForIndex(i),
			MessageCount:   senderCounts[s],
			CreatedAt:      now,
		})
	}
	return conv, participants
}

// insertMessages persists messages in batches, checkpointing job progress
// after each batch. It returns the media filename -> message id index used
// to link archive media to the messages that referenced them.
func (a *App) insertMessages(ctx context.Context, job *domain.ImportJob, conversationID string, participants []domain.Participant, msgs []ParsedMessage) (map[string]string, error) {
	participantID := make(map[string]string, len(participants))
	for _, p := range participants {
		participantID[p.Name] = p.ID
	}

	mediaIndex := make(map[string]string)
	now := time.Now().UTC()

	batch := make([]domain.Message, 0, a.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := a.store.AddMessages(batch); err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
		job.ProcessedMessages += len(batch)
		job.UpdatedAt = time.Now().UTC()
		if err := a.store.SaveImportJob(*job); err != nil {
			return fmt.Errorf("save import job: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for _, m := range msgs {
		msg := domain.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			SenderName:     m.Sender,
			Content:        m.Content,
			Type:           m.Type,
			Timestamp:      m.Timestamp,
			HasMedia:       m.HasMedia,
			CreatedAt:      now,
		}
		if !m.IsSystem {
			msg.ParticipantID = participantID[m.Sender]
		}
		if m.HasMedia && m.MediaFilename != "" {
			mediaIndex[m.MediaFilename] = msg.ID
		}
		batch = append(batch, msg)
		if len(batch) >= a.batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return mediaIndex, nil
}

// importMedia stores each archive media file and links it to its message.
// Every member's bytes are uploaded, under the invisible-mark-cleaned
// filename; files no message referenced keep their object but get no
// database row. Extraction failures are logged and skipped. All of them
// advance the media counter so progress completes.
func (a *App) importMedia(ctx context.Context, job *domain.ImportJob, conversationID string, files []*zip.File, mediaIndex map[string]string) error {
	logger := util.LoggerFromContext(ctx).With("job_id", job.ID)

	for _, f := range files {
		raw := path.Base(f.Name)
		filename := strings.TrimSpace(cleanInvisible(raw))
		if filename == "" {
			filename = raw
		}
		messageID, ok := mediaIndex[filename]
		if !ok {
			messageID = mediaIndex[raw]
		}
		if messageID == "" {
			logger.Warn("media file not referenced by any message", "filename", filename)
		}
		if err := a.storeMediaFile(ctx, conversationID, messageID, filename, f); err != nil {
			logger.Warn("failed to import media file", "filename", filename, "error", err)
		}

		job.ProcessedMedia++
		job.UpdatedAt = time.Now().UTC()
		if err := a.store.SaveImportJob(*job); err != nil {
			return fmt.Errorf("save import job: %w", err)
		}
	}
	return nil
}

func (a *App) storeMediaFile(ctx context.Context, conversationID, messageID, filename string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive member: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("read archive member: %w", err)
	}

	ext := strings.ToLower(path.Ext(filename))
	key := mediaObjectKey(conversationID, filename)
	if err := a.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mimeTypeForExt(ext)); err != nil {
		return fmt.Errorf("store media object: %w", err)
	}
	if messageID == "" {
		return nil
	}

	media := domain.MediaFile{
		ID:               uuid.NewString(),
		MessageID:        messageID,
		StorageKey:       key,
		OriginalFilename: filename,
		MediaType:        mediaTypeForExt(ext),
		MimeType:         mimeTypeForExt(ext),
		FileSize:         int64(len(data)),
		CreatedAt:        time.Now().UTC(),
	}
	if err := a.store.CreateMediaFile(media); err != nil {
		return fmt.Errorf("create media record: %w", err)
	}
	return nil
}

// ListConversations returns imported conversations, newest first.
func (a *App) ListConversations(ctx context.Context, limit int) ([]domain.Conversation, error) {
	return a.store.ListConversations(limit)
}

// GetConversation returns one conversation with its participants.
func (a *App) GetConversation(ctx context.Context, id string) (domain.Conversation, []domain.Participant, error) {
	conv, found, err := a.store.GetConversation(id)
	if err != nil {
		return domain.Conversation{}, nil, err
	}
	if !found {
		return domain.Conversation{}, nil, ErrConversationNotFound
	}
	participants, err := a.store.ListParticipants(id)
	if err != nil {
		return domain.Conversation{}, nil, err
	}
	return conv, participants, nil
}

// DeleteConversation removes a conversation, its database records, and its
// stored media objects.
func (a *App) DeleteConversation(ctx context.Context, id string) error {
	_, found, err := a.store.GetConversation(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrConversationNotFound
	}

	keys, err := a.objects.List(ctx, conversationObjectPrefix(id))
	if err != nil {
		return fmt.Errorf("list conversation objects: %w", err)
	}
	for _, key := range keys {
		if err := a.objects.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete object %s: %w", key, err)
		}
	}
	return a.store.DeleteConversation(id)
}

// ListMessages returns a conversation's messages in timestamp order.
func (a *App) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	_, found, err := a.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrConversationNotFound
	}
	return a.store.ListMessages(conversationID, limit)
}

// ListMedia returns a conversation's media records.
func (a *App) ListMedia(ctx context.Context, conversationID string) ([]domain.MediaFile, error) {
	_, found, err := a.store.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrConversationNotFound
	}
	return a.store.ListMediaFiles(conversationID)
}

// MediaURL returns a media record together with a time-limited download URL.
func (a *App) MediaURL(ctx context.Context, mediaID string, expiry time.Duration) (domain.MediaFile, string, error) {
	media, found, err := a.store.GetMediaFile(mediaID)
	if err != nil {
		return domain.MediaFile{}, "", err
	}
	if !found {
		return domain.MediaFile{}, "", ErrMediaNotFound
	}
	url, err := a.objects.PresignGet(ctx, media.StorageKey, expiry)
	if err != nil {
		return domain.MediaFile{}, "", fmt.Errorf("presign media object: %w", err)
	}
	return media, url, nil
}
