package services

import (
	"context"
	"log"
	"net/http"
	"time"

	"furniplan/internal/events"
	"furniplan/internal/models"
	"furniplan/internal/whatsapp"
)

// Broadcaster pushes chat activity to connected operators.
type Broadcaster interface {
	BroadcastMessage(msg *models.Message)
	BroadcastRead(chatID, readerID int64, messageIDs []int64)
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// ChannelSender is the outbound side of the WhatsApp Cloud API.
type ChannelSender interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendMedia(ctx context.Context, to string, att models.Attachment, caption string) (string, error)
	MediaURL(mediaID string) string
}

// SenderFactory builds a sender for the credentials currently stored.
type SenderFactory func(creds whatsapp.Credentials) ChannelSender

// NewSenderFactory returns a factory of Cloud API clients sharing httpClient.
func NewSenderFactory(graphBaseURL string, httpClient *http.Client) SenderFactory {
	return func(creds whatsapp.Credentials) ChannelSender {
		return whatsapp.NewClient(graphBaseURL, creds, httpClient)
	}
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastMessage(*models.Message) {}
func (nopBroadcaster) BroadcastRead(int64, int64, []int64) {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

type nopAlerter struct{}

func (nopAlerter) Alert(context.Context, string, string) error { return nil }

func publishEvent(ctx context.Context, p EventPublisher, key string, chatID, messageID int64, payload any) {
	env := events.Envelope{
		EventType:  key,
		OccurredAt: time.Now().UTC(),
		ChatID:     chatID,
		MessageID:  messageID,
		Payload:    payload,
	}
	if err := p.Publish(ctx, key, env); err != nil {
		log.Printf("[events] publish %s chat=%d: %v", key, chatID, err)
	}
}
