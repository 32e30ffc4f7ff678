package models

import (
	"time"

	"furniplan/internal/utils"
)

// IntegrationSettingsID is the fixed key of the singleton settings row.
const IntegrationSettingsID = 1

const DefaultWhatsAppAPIVersion = "v20.0"

// IntegrationSettings configures the WhatsApp Business channel.
type IntegrationSettings struct {
	ID                   int       `db:"id" json:"id"`
	APIKey               string    `db:"api_key" json:"apiKey"`
	PhoneNumberID        string    `db:"phone_number_id" json:"phoneNumberId"`
	BusinessAccountID    string    `db:"business_account_id" json:"businessAccountId"`
	APIVersion           string    `db:"api_version" json:"apiVersion"`
	IsActive             bool      `db:"is_active" json:"isActive"`
	WebhookVerifyToken   string    `db:"webhook_verify_token" json:"webhookVerifyToken"`
	AppSecret            string    `db:"app_secret" json:"appSecret"`
	AutoResponderEnabled bool      `db:"auto_responder_enabled" json:"autoResponderEnabled"`
	AutoResponderMessage string    `db:"auto_responder_message" json:"autoResponderMessage"`
	UpdatedAt            time.Time `db:"updated_at" json:"updatedAt"`
}

// Masked returns a copy safe to hand to clients and logs. The receiver is not modified.
func (s IntegrationSettings) Masked() IntegrationSettings {
	out := s
	out.APIKey = utils.MaskSecret(s.APIKey)
	out.AppSecret = utils.MaskSecret(s.AppSecret)
	return out
}

// AutoReply returns the configured auto-responder text, if it should fire.
func (s *IntegrationSettings) AutoReply() (string, bool) {
	if s == nil || !s.IsActive || !s.AutoResponderEnabled || s.AutoResponderMessage == "" {
		return "", false
	}
	return s.AutoResponderMessage, true
}

// UpsertIntegrationInput is the body of POST /api/whatsapp-integration.
// Empty secrets keep the stored value.
type UpsertIntegrationInput struct {
	APIKey               string  `json:"apiKey"`
	PhoneNumberID        string  `json:"phoneNumberId"`
	BusinessAccountID    string  `json:"businessAccountId"`
	APIVersion           string  `json:"apiVersion"`
	IsActive             *bool   `json:"isActive"`
	WebhookVerifyToken   string  `json:"webhookVerifyToken"`
	AppSecret            string  `json:"appSecret"`
	AutoResponderEnabled *bool   `json:"autoResponderEnabled"`
	AutoResponderMessage *string `json:"autoResponderMessage"`
	GenerateNewToken     bool    `json:"generateNewToken"`
}
