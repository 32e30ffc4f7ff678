package services

import "errors"

var (
	// ErrChatNotFound covers both a missing chat and one the caller does not participate in.
	ErrChatNotFound            = errors.New("chat not found")
	ErrMessageNotFound         = errors.New("message not found")
	ErrSuggestionNotFound      = errors.New("suggestion not found")
	ErrEmptyMessage            = errors.New("message must have content or attachments")
	ErrInvalidMessageInput     = errors.New("invalid message")
	ErrInvalidChatInput        = errors.New("invalid chat")
	ErrChatConflict            = errors.New("an active whatsapp chat already exists for this number")
	ErrChatArchived            = errors.New("chat is archived")
	ErrInvalidStatusTransition = errors.New("archived chats cannot be reactivated")

	ErrIntegrationNotConfigured = errors.New("whatsapp integration not configured")
	ErrInvalidIntegrationInput  = errors.New("invalid integration settings")

	ErrWebhookRejected = errors.New("webhook verification failed")
	ErrIngestFailed    = errors.New("no inbound message could be stored")

	ErrInvalidCredentials = errors.New("invalid email or password")
)
