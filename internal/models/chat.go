package models

import "time"

type ChatType string

const (
	ChatTypeDirect   ChatType = "direct"
	ChatTypeGroup    ChatType = "group"
	ChatTypeWhatsApp ChatType = "whatsapp"
)

func (t ChatType) Valid() bool {
	switch t {
	case ChatTypeDirect, ChatTypeGroup, ChatTypeWhatsApp:
		return true
	}
	return false
}

type ChatStatus string

const (
	ChatStatusActive   ChatStatus = "active"
	ChatStatusArchived ChatStatus = "archived"
)

func (s ChatStatus) Valid() bool {
	return s == ChatStatusActive || s == ChatStatusArchived
}

// Chat is a conversation thread, optionally bound to a WhatsApp number.
type Chat struct {
	ID                   int64         `db:"id" json:"id"`
	Type                 ChatType      `db:"type" json:"type"`
	Title                *string       `db:"title" json:"title"`
	Status               ChatStatus    `db:"status" json:"status"`
	IsWhatsAppIntegrated bool          `db:"is_whatsapp_integrated" json:"isWhatsAppIntegrated"`
	WhatsAppNumber       *string       `db:"whatsapp_number" json:"whatsAppNumber"`
	LeadID               *int64        `db:"lead_id" json:"leadId"`
	CreatedBy            int64         `db:"created_by" json:"createdBy"`
	CreatedAt            time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updatedAt"`
	Participants         []UserSummary `db:"-" json:"participants"`
}

type ChatFilter struct {
	Type   *ChatType
	Status *ChatStatus
	LeadID *int64
}

type CreateChatInput struct {
	Type                 ChatType `json:"type"`
	Title                *string  `json:"title"`
	LeadID               *int64   `json:"leadId"`
	ParticipantIDs       []int64  `json:"participantIds"`
	IsWhatsAppIntegrated bool     `json:"isWhatsAppIntegrated"`
	WhatsAppNumber       *string  `json:"whatsAppNumber"`
}

// UpdateChatInput carries a partial update; nil fields are left untouched.
type UpdateChatInput struct {
	Title                *string     `json:"title"`
	Status               *ChatStatus `json:"status"`
	ParticipantIDs       []int64     `json:"participantIds"`
	IsWhatsAppIntegrated *bool       `json:"isWhatsAppIntegrated"`
	WhatsAppNumber       *string     `json:"whatsAppNumber"`
}

// InboundChat describes the chat the ingestor opens for a new external contact.
type InboundChat struct {
	WhatsAppNumber string
	Title          string
	LeadID         *int64
	CreatedBy      int64
	ParticipantIDs []int64
}
