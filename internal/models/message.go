package models

import "time"

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeMedia  MessageType = "media"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeMedia || t == MessageTypeSystem
}

type MessageSource string

const (
	SourceHuman     MessageSource = "human"
	SourceExternal  MessageSource = "external"
	SourceAI        MessageSource = "ai"
	SourceAutomated MessageSource = "automated"
)

func (s MessageSource) Valid() bool {
	switch s {
	case SourceHuman, SourceExternal, SourceAI, SourceAutomated:
		return true
	}
	return false
}

type Message struct {
	ID            int64              `db:"id" json:"id"`
	ChatID        int64              `db:"chat_id" json:"chatId"`
	SenderID      int64              `db:"sender_id" json:"senderId"`
	Content       *string            `db:"content" json:"content"`
	Type          MessageType        `db:"type" json:"type"`
	Source        MessageSource      `db:"source" json:"source"`
	SentAt        time.Time          `db:"sent_at" json:"sentAt"`
	ReadAt        *time.Time         `db:"read_at" json:"readAt"`
	IsAIGenerated bool               `db:"is_ai_generated" json:"isAIGenerated"`
	ExternalID    *string            `db:"external_id" json:"externalId,omitempty"`
	Sender        *UserSummary       `db:"-" json:"sender,omitempty"`
	Attachments   []Attachment       `db:"-" json:"attachments"`
	AISuggestions []AISuggestedReply `db:"-" json:"aiSuggestions"`
}


type Attachment struct {
	ID        int64  `db:"id" json:"id"`
	MessageID int64  `db:"message_id" json:"messageId"`
	Name      string `db:"name" json:"name"`
	URL       string `db:"url" json:"url"`
	MimeType  string `db:"mime_type" json:"mimeType"`
	Size      int64  `db:"size" json:"size"`
}

type AISuggestedReply struct {
	ID        int64  `db:"id" json:"id"`
	MessageID int64  `db:"message_id" json:"messageId"`
	Content   string `db:"content" json:"content"`
	IsUsed    bool   `db:"is_used" json:"isUsed"`
}

type AttachmentInput struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// NewMessage is a message about to be written. A zero SentAt means the store clock.
type NewMessage struct {
	ChatID        int64
	SenderID      int64
	Content       *string
	Type          MessageType
	Source        MessageSource
	IsAIGenerated bool
	ExternalID    *string
	SentAt        time.Time
	Attachments   []AttachmentInput
	AISuggestions []string
}

// HasBody reports whether the message satisfies the content-or-attachment rule.
func (m NewMessage) HasBody() bool {
	return (m.Content != nil && *m.Content != "") || len(m.Attachments) > 0
}

// MessageQuery pages through a chat by send time.
type MessageQuery struct {
	Limit  int
	Before *time.Time
	After  *time.Time
}
