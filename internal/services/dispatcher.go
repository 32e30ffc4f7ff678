package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"furniplan/internal/events"
	"furniplan/internal/models"
	"furniplan/internal/observability"
	"furniplan/internal/repositories"
	"furniplan/internal/whatsapp"
)

const (
	DefaultForwardTimeout = 10 * time.Second
	maxSuggestions        = 10
)

type SendInput struct {
	ChatID        int64
	SenderID      int64
	Content       string
	Type          models.MessageType
	Source        models.MessageSource
	IsAIGenerated bool
	Attachments   []models.AttachmentInput
	AISuggestions []string
}

// SendResult is the stored message plus the outcome of forwarding it.
// Warning is set when the chat is integrated but the message did not reach WhatsApp.
type SendResult struct {
	Message   *models.Message
	Warning   string
	Forwarded bool
}

// Dispatcher persists outgoing messages and relays them to WhatsApp for
// integrated chats. Persistence always completes before forwarding starts.
type Dispatcher struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	settings repositories.IntegrationRepository
	senders  SenderFactory
	hub      Broadcaster
	events   EventPublisher
	alerts   Alerter
	timeout  time.Duration
}

func NewDispatcher(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	settings repositories.IntegrationRepository,
	senders SenderFactory,
	hub Broadcaster,
	publisher EventPublisher,
	alerts Alerter,
	timeout time.Duration,
) *Dispatcher {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if alerts == nil {
		alerts = nopAlerter{}
	}
	if timeout <= 0 {
		timeout = DefaultForwardTimeout
	}
	return &Dispatcher{
		chats:    chats,
		messages: messages,
		settings: settings,
		senders:  senders,
		hub:      hub,
		events:   publisher,
		alerts:   alerts,
		timeout:  timeout,
	}
}

// Send stores an operator message and forwards it when the chat is bound to WhatsApp.
func (d *Dispatcher) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	chat, err := d.chats.GetForParticipant(ctx, in.ChatID, in.SenderID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load chat %d: %w", in.ChatID, err)
	}

	nm, err := buildOutgoing(in)
	if err != nil {
		return nil, err
	}
	if chat.Status == models.ChatStatusArchived {
		return nil, ErrChatArchived
	}
	return d.deliver(ctx, chat, nm)
}

// SendAutomated posts a system-authored text into chat, skipping the
// participant check. Used by the auto-responder.
func (d *Dispatcher) SendAutomated(ctx context.Context, chat *models.Chat, senderID int64, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if chat.Status == models.ChatStatusArchived {
		return nil, ErrChatArchived
	}
	return d.deliver(ctx, chat, models.NewMessage{
		ChatID:   chat.ID,
		SenderID: senderID,
		Content:  &text,
		Type:     models.MessageTypeText,
		Source:   models.SourceAutomated,
	})
}

func buildOutgoing(in SendInput) (models.NewMessage, error) {
	content := strings.TrimSpace(in.Content)
	nm := models.NewMessage{ChatID: in.ChatID, SenderID: in.SenderID, Attachments: in.Attachments}
	if content != "" {
		nm.Content = &content
	}
	if !nm.HasBody() {
		return models.NewMessage{}, ErrEmptyMessage
	}

	typ := in.Type
	if typ == "" {
		typ = models.MessageTypeText
		if content == "" {
			typ = models.MessageTypeMedia
		}
	}
	if !typ.Valid() {
		return models.NewMessage{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMessageInput, typ)
	}

	source := in.Source
	if source == "" {
		source = models.SourceHuman
		if in.IsAIGenerated {
			source = models.SourceAI
		}
	}
	if !source.Valid() {
		return models.NewMessage{}, fmt.Errorf("%w: unknown source %q", ErrInvalidMessageInput, source)
	}
	// external is reserved for the webhook
	if source == models.SourceExternal {
		return models.NewMessage{}, fmt.Errorf("%w: source %q cannot be sent by operators", ErrInvalidMessageInput, source)
	}

	for i, a := range in.Attachments {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.URL) == "" {
			return models.NewMessage{}, fmt.Errorf("%w: attachment %d needs name and url", ErrInvalidMessageInput, i)
		}
		if a.Size < 0 {
			return models.NewMessage{}, fmt.Errorf("%w: attachment %d has negative size", ErrInvalidMessageInput, i)
		}
	}

	var suggestions []string
	for _, s := range in.AISuggestions {
		if s = strings.TrimSpace(s); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	if len(suggestions) > maxSuggestions {
		return models.NewMessage{}, fmt.Errorf("%w: at most %d suggestions", ErrInvalidMessageInput, maxSuggestions)
	}

	nm.Type = typ
	nm.Source = source
	nm.IsAIGenerated = in.IsAIGenerated || source == models.SourceAI
	nm.AISuggestions = suggestions
	return nm, nil
}

func (d *Dispatcher) deliver(ctx context.Context, chat *models.Chat, nm models.NewMessage) (*SendResult, error) {
	msg, err := d.messages.Create(ctx, nm)
	if err != nil {
		return nil, fmt.Errorf("store message chat=%d: %w", chat.ID, err)
	}
	log.Printf("[chat][send] chat=%d message=%d sender=%d source=%s", chat.ID, msg.ID, msg.SenderID, msg.Source)

	d.hub.BroadcastMessage(msg)
	publishEvent(ctx, d.events, events.RoutingMessageCreated, chat.ID, msg.ID, msg)

	res := &SendResult{Message: msg}
	res.Forwarded, res.Warning = d.forward(ctx, chat, msg)
	return res, nil
}

// forward relays a stored message. It never fails the send: problems come
// back as a warning for the caller.
func (d *Dispatcher) forward(ctx context.Context, chat *models.Chat, msg *models.Message) (bool, string) {
	if !chat.IsWhatsAppIntegrated || chat.WhatsAppNumber == nil {
		return false, ""
	}

	settings, err := d.settings.Get(ctx)
	if err != nil && !errors.Is(err, repositories.ErrIntegrationNotFound) {
		log.Printf("[chat][forward] chat=%d message=%d load settings: %v", chat.ID, msg.ID, err)
		observability.ObserveForward(observability.OutcomeFailed, 0)
		return false, "message saved but WhatsApp settings could not be loaded"
	}
	if settings == nil || !settings.IsActive {
		observability.ObserveForward(observability.OutcomeSkipped, 0)
		return false, "message saved but the WhatsApp integration is not active"
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	start := time.Now()
	sender := d.senders(whatsapp.CredentialsFrom(settings))
	err = sendVia(fctx, sender, *chat.WhatsAppNumber, msg)
	elapsed := time.Since(start)
	if err != nil {
		observability.ObserveForward(observability.OutcomeFailed, elapsed)
		log.Printf("[chat][forward][err] chat=%d message=%d took=%s: %v", chat.ID, msg.ID, elapsed.Round(time.Millisecond), err)

		body := fmt.Sprintf("chat=%d message=%d number=%s\n%v", chat.ID, msg.ID, *chat.WhatsAppNumber, err)
		if aerr := d.alerts.Alert(ctx, "WhatsApp forward failed", body); aerr != nil {
			log.Printf("[chat][forward] alert: %v", aerr)
		}
		publishEvent(ctx, d.events, events.RoutingForwardFailed, chat.ID, msg.ID, map[string]string{"error": err.Error()})
		return false, "message saved but not delivered to WhatsApp: " + err.Error()
	}

	observability.ObserveForward(observability.OutcomeSent, elapsed)
	return true, ""
}

// sendVia sends the text first, then each attachment as its own media message.
func sendVia(ctx context.Context, sender ChannelSender, to string, msg *models.Message) error {
	if msg.Content != nil && *msg.Content != "" {
		if _, err := sender.SendText(ctx, to, *msg.Content); err != nil {
			return fmt.Errorf("send text: %w", err)
		}
	}
	for _, att := range msg.Attachments {
		if _, err := sender.SendMedia(ctx, to, att, ""); err != nil {
			return fmt.Errorf("send attachment %q: %w", att.Name, err)
		}
	}
	return nil
}
