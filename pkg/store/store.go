package store

import "chatvault/pkg/domain"

// Store defines persistence operations for import jobs, conversations,
// participants, messages, and media records.
type Store interface {
	// import jobs
	CreateImportJob(job domain.ImportJob) error
	SaveImportJob(job domain.ImportJob) error
	GetImportJob(id string) (domain.ImportJob, bool, error)
	ListImportJobs(limit int) ([]domain.ImportJob, error)

	// conversations
	CreateConversation(conv domain.Conversation, participants []domain.Participant) error
	GetConversation(id string) (domain.Conversation, bool, error)
	ListConversations(limit int) ([]domain.Conversation, error)
	DeleteConversation(id string) error
	ListParticipants(conversationID string) ([]domain.Participant, error)

	// messages
	AddMessages(msgs []domain.Message) error
	ListMessages(conversationID string, limit int) ([]domain.Message, error)

	// media
	CreateMediaFile(media domain.MediaFile) error
	GetMediaFile(id string) (domain.MediaFile, bool, error)
	ListMediaFiles(conversationID string) ([]domain.MediaFile, error)
}
