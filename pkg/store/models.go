package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"chatvault/pkg/domain"
)

// GORM models used for persistence.
type ImportJobModel struct {
	ID                string  `gorm:"primaryKey"`
	ConversationID    *string `gorm:"index"`
	Filename          string  `gorm:"not null"`
	FileSize          int64   `gorm:"not null"`
	TotalChunks       int     `gorm:"not null"`
	UploadedChunks    int     `gorm:"not null"`
	Status            string  `gorm:"not null;index"`
	TotalMessages     int
	ProcessedMessages int
	TotalMedia        int
	ProcessedMedia    int
	ErrorMessage      string    `gorm:"type:text"`
	TempStorageKey    string    `gorm:"size:512"`
	CreatedAt         time.Time `gorm:"not null;index"`
	UpdatedAt         time.Time `gorm:"not null"`
	CompletedAt       *time.Time
}

type ConversationModel struct {
	ID             string `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	IsGroup        bool   `gorm:"not null"`
	MessageCount   int    `gorm:"not null"`
	FirstMessageAt *time.Time
	LastMessageAt  *time.Time
	Stats          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null;index"`
	UpdatedAt      time.Time      `gorm:"not null"`
}

type ParticipantModel struct {
	ID             string    `gorm:"primaryKey"`
	ConversationID string    `gorm:"not null;index"`
	Name           string    `gorm:"not null"`
	Color          string    `gorm:"size:7;not null"`
	MessageCount   int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

type MessageModel struct {
	ID             string    `gorm:"primaryKey"`
	ConversationID string    `gorm:"not null;index:ix_messages_conversation_timestamp"`
	ParticipantID  *string   `gorm:"index"`
	SenderName     string    `gorm:"not null"`
	Content        string    `gorm:"type:text"`
	MessageType    string    `gorm:"size:50;not null"`
	Timestamp      time.Time `gorm:"not null;index:ix_messages_conversation_timestamp"`
	HasMedia       bool      `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

type MediaFileModel struct {
	ID               string `gorm:"primaryKey"`
	MessageID        string `gorm:"not null;index"`
	StorageKey       string `gorm:"size:512;not null"`
	OriginalFilename string
	MediaType        string `gorm:"size:50;not null"`
	MimeType         string `gorm:"size:100"`
	FileSize         int64
	ThumbnailKey     string    `gorm:"size:512"`
	CreatedAt        time.Time `gorm:"not null"`
}

func jobToModel(j domain.ImportJob) ImportJobModel {
	model := ImportJobModel{
		ID:                j.ID,
		Filename:          j.Filename,
		FileSize:          j.FileSize,
		TotalChunks:       j.TotalChunks,
		UploadedChunks:    j.UploadedChunks,
		Status:            string(j.Status),
		TotalMessages:     j.TotalMessages,
		ProcessedMessages: j.ProcessedMessages,
		TotalMedia:        j.TotalMedia,
		ProcessedMedia:    j.ProcessedMedia,
		ErrorMessage:      j.ErrorMessage,
		TempStorageKey:    j.TempStorageKey,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
		CompletedAt:       j.CompletedAt,
	}
	if j.ConversationID != "" {
		id := j.ConversationID
		model.ConversationID = &id
	}
	return model
}

func jobFromModel(m ImportJobModel) domain.ImportJob {
	job := domain.ImportJob{
		ID:                m.ID,
		Filename:          m.Filename,
		FileSize:          m.FileSize,
		TotalChunks:       m.TotalChunks,
		UploadedChunks:    m.UploadedChunks,
		Status:            domain.JobStatus(m.Status),
		TotalMessages:     m.TotalMessages,
		ProcessedMessages: m.ProcessedMessages,
		TotalMedia:        m.TotalMedia,
		ProcessedMedia:    m.ProcessedMedia,
		ErrorMessage:      m.ErrorMessage,
		TempStorageKey:    m.TempStorageKey,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		CompletedAt:       m.CompletedAt,
	}
	if m.ConversationID != nil {
		job.ConversationID = *m.ConversationID
	}
	return job
}

func conversationToModel(c domain.Conversation) ConversationModel {
	model := ConversationModel{
		ID:             c.ID,
		Name:           c.Name,
		IsGroup:        c.IsGroup,
		MessageCount:   c.MessageCount,
		FirstMessageAt: c.FirstMessageAt,
		LastMessageAt:  c.LastMessageAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if len(c.Stats) > 0 {
		if raw, err := json.Marshal(c.Stats); err == nil {
			model.Stats = datatypes.JSON(raw)
		}
	}
	return model
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	conv := domain.Conversation{
		ID:             m.ID,
		Name:           m.Name,
		IsGroup:        m.IsGroup,
		MessageCount:   m.MessageCount,
		FirstMessageAt: m.FirstMessageAt,
		LastMessageAt:  m.LastMessageAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if len(m.Stats) > 0 {
		stats := map[string]int{}
		if err := json.Unmarshal(m.Stats, &stats); err == nil {
			conv.Stats = stats
		}
	}
	return conv
}

func participantToModel(p domain.Participant) ParticipantModel {
	return ParticipantModel{
		ID:             p.ID,
		ConversationID: p.ConversationID,
		Name:           p.Name,
		Color:          p.Color,
		MessageCount:   p.MessageCount,
		CreatedAt:      p.CreatedAt,
	}
}

func participantFromModel(m ParticipantModel) domain.Participant {
	return domain.Participant{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Name:           m.Name,
		Color:          m.Color,
		MessageCount:   m.MessageCount,
		CreatedAt:      m.CreatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	model := MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderName:     msg.SenderName,
		Content:        msg.Content,
		MessageType:    string(msg.Type),
		Timestamp:      msg.Timestamp,
		HasMedia:       msg.HasMedia,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.ParticipantID != "" {
		id := msg.ParticipantID
		model.ParticipantID = &id
	}
	return model
}

func messageFromModel(m MessageModel) domain.Message {
	msg := domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderName:     m.SenderName,
		Content:        m.Content,
		Type:           domain.MessageType(m.MessageType),
		Timestamp:      m.Timestamp,
		HasMedia:       m.HasMedia,
		CreatedAt:      m.CreatedAt,
	}
	if m.ParticipantID != nil {
		msg.ParticipantID = *m.ParticipantID
	}
	return msg
}

func mediaToModel(f domain.MediaFile) MediaFileModel {
	return MediaFileModel{
		ID:               f.ID,
		MessageID:        f.MessageID,
		StorageKey:       f.StorageKey,
		OriginalFilename: f.OriginalFilename,
		MediaType:        f.MediaType,
		MimeType:         f.MimeType,
		FileSize:         f.FileSize,
		ThumbnailKey:     f.ThumbnailKey,
		CreatedAt:        f.CreatedAt,
	}
}

func mediaFromModel(m MediaFileModel) domain.MediaFile {
	return domain.MediaFile{
		ID:               m.ID,
		MessageID:        m.MessageID,
		StorageKey:       m.StorageKey,
		OriginalFilename: m.OriginalFilename,
		MediaType:        m.MediaType,
		MimeType:         m.MimeType,
		FileSize:         m.FileSize,
		ThumbnailKey:     m.ThumbnailKey,
		CreatedAt:        m.CreatedAt,
	}
}
