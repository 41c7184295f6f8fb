package domain

import "time"

// JobStatus is the lifecycle state of an import job. Transitions only move
// forward: uploading -> pending -> processing -> completed | failed.
type JobStatus string

const (
	JobUploading  JobStatus = "uploading"
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// MessageType classifies a chat message.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeAudio    MessageType = "audio"
	TypeDocument MessageType = "document"
	TypeSticker  MessageType = "sticker"
	TypeGIF      MessageType = "gif"
	TypeContact  MessageType = "contact"
	TypeLocation MessageType = "location"
	TypeSystem   MessageType = "system"
)

// ImportJob tracks a chunked upload and its asynchronous processing.
type ImportJob struct {
	ID                string     `json:"id"`
	ConversationID    string     `json:"conversationId,omitempty"`
	Filename          string     `json:"filename"`
	FileSize          int64      `json:"fileSize"`
	TotalChunks       int        `json:"totalChunks"`
	UploadedChunks    int        `json:"uploadedChunks"`
	Status            JobStatus  `json:"status"`
	TotalMessages     int        `json:"totalMessages"`
	ProcessedMessages int        `json:"processedMessages"`
	TotalMedia        int        `json:"totalMedia"`
	ProcessedMedia    int        `json:"processedMedia"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
	TempStorageKey    string     `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// Conversation is one imported chat. Aggregate fields are fixed at import
// time; Stats holds per-message-type counts.
type Conversation struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	IsGroup        bool           `json:"isGroup"`
	MessageCount   int            `json:"messageCount"`
	FirstMessageAt *time.Time     `json:"firstMessageAt,omitempty"`
	LastMessageAt  *time.Time     `json:"lastMessageAt,omitempty"`
	Stats          map[string]int `json:"stats,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Participant is one distinct non-system sender within a conversation.
type Participant struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	MessageCount   int       `json:"messageCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Message is one logical chat entry, possibly spanning multiple source lines.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	ParticipantID  string      `json:"participantId,omitempty"`
	SenderName     string      `json:"senderName"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	Timestamp      time.Time   `json:"timestamp"`
	HasMedia       bool        `json:"hasMedia"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// MediaFile links a stored binary object to the message that referenced it.
type MediaFile struct {
	ID               string    `json:"id"`
	MessageID        string    `json:"messageId"`
	StorageKey       string    `json:"-"`
	OriginalFilename string    `json:"originalFilename"`
	MediaType        string    `json:"mediaType"`
	MimeType         string    `json:"mimeType"`
	FileSize         int64     `json:"fileSize"`
	ThumbnailKey     string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ParticipantColors is the fixed palette cycled when assigning participant
// colors. Assignment is by rank in the lexicographic sort of sender names,
// so a given sender set always maps to the same colors.
var ParticipantColors = []string{
	"#25D366",
	"#34B7F1",
	"#9C27B0",
	"#FF5722",
	"#00BCD4",
	"#E91E63",
	"#3F51B5",
	"#FF9800",
	"#009688",
	"#795548",
	"#607D8B",
	"#8BC34A",
}

// ColorForIndex returns the palette color for a participant rank.
func ColorForIndex(idx int) string {
	if idx < 0 {
		idx = -idx
	}
	return ParticipantColors[idx%len(ParticipantColors)]
}
