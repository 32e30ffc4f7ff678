package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"furniplan/internal/events"
	"furniplan/internal/models"
	"furniplan/internal/observability"
	"furniplan/internal/repositories"
	"furniplan/internal/whatsapp"
)

// IngestResult counts what happened to each message of one webhook payload.
type IngestResult struct {
	Received   int `json:"received"`
	Stored     int `json:"stored"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Ingestor turns WhatsApp webhook payloads into chat messages.
type Ingestor struct {
	chats        repositories.ChatRepository
	messages     repositories.MessageRepository
	leads        repositories.LeadRepository
	dispatcher   *Dispatcher
	senders      SenderFactory
	hub          Broadcaster
	events       EventPublisher
	alerts       Alerter
	systemUserID int64
	assignees    []int64
}

func NewIngestor(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	leads repositories.LeadRepository,
	dispatcher *Dispatcher,
	senders SenderFactory,
	hub Broadcaster,
	publisher EventPublisher,
	alerts Alerter,
	systemUserID int64,
	assignees []int64,
) *Ingestor {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if alerts == nil {
		alerts = nopAlerter{}
	}
	return &Ingestor{
		chats:        chats,
		messages:     messages,
		leads:        leads,
		dispatcher:   dispatcher,
		senders:      senders,
		hub:          hub,
		events:       publisher,
		alerts:       alerts,
		systemUserID: systemUserID,
		assignees:    assignees,
	}
}

// Ingest validates the whole payload before writing anything, then stores
// each message independently. It fails only when the payload is malformed
// or when every message failed.
func (s *Ingestor) Ingest(ctx context.Context, settings *models.IntegrationSettings, raw []byte) (IngestResult, error) {
	var res IngestResult

	inbound, err := whatsapp.ParsePayload(raw)
	if err != nil {
		return res, err
	}
	res.Received = len(inbound)
	if len(inbound) == 0 {
		return res, nil
	}

	if settings == nil || !settings.IsActive {
		log.Printf("[wa:webhook] integration inactive, skipping %d message(s)", len(inbound))
		for range inbound {
			observability.IncInbound(observability.OutcomeSkipped)
		}
		res.Skipped = len(inbound)
		return res, nil
	}

	sender := s.senders(whatsapp.CredentialsFrom(settings))
	for _, in := range inbound {
		if in.PhoneNumberID != "" && settings.PhoneNumberID != "" && in.PhoneNumberID != settings.PhoneNumberID {
			log.Printf("[wa:webhook] skip message=%s for phone_number_id=%s", in.ExternalID, in.PhoneNumberID)
			observability.IncInbound(observability.OutcomeSkipped)
			res.Skipped++
			continue
		}

		outcome, err := s.ingestOne(ctx, settings, sender, in)
		if err != nil {
			log.Printf("[wa:webhook][err] message=%s from=%s: %v", in.ExternalID, in.From, err)
		}
		observability.IncInbound(outcome)
		switch outcome {
		case observability.OutcomeStored:
			res.Stored++
		case observability.OutcomeDuplicate:
			res.Duplicates++
		default:
			res.Failed++
		}
	}

	if res.Failed > 0 && res.Stored+res.Duplicates == 0 {
		return res, ErrIngestFailed
	}
	return res, nil
}

func (s *Ingestor) ingestOne(ctx context.Context, settings *models.IntegrationSettings, sender ChannelSender, in whatsapp.InboundMessage) (string, error) {
	title := in.ProfileName
	if title == "" {
		title = in.From
	}
	chat, created, err := s.chats.ResolveInbound(ctx, models.InboundChat{
		WhatsAppNumber: in.From,
		Title:          title,
		LeadID:         s.leadFor(ctx, in.From),
		CreatedBy:      s.systemUserID,
		ParticipantIDs: uniqueIDs(append([]int64{s.systemUserID}, s.assignees...)),
	})
	if err != nil {
		return observability.OutcomeFailed, fmt.Errorf("resolve chat: %w", err)
	}

	externalID := in.ExternalID
	nm := models.NewMessage{
		ChatID:     chat.ID,
		SenderID:   s.systemUserID,
		Type:       in.Kind,
		Source:     models.SourceExternal,
		ExternalID: &externalID,
		SentAt:     in.SentAt,
	}
	if in.Body != "" {
		body := in.Body
		nm.Content = &body
	}
	if in.Media != nil {
		nm.Attachments = []models.AttachmentInput{{
			Name:     in.Media.AttachmentName(),
			URL:      sender.MediaURL(in.Media.ID),
			MimeType: in.Media.MimeType,
		}}
	}

	msg, err := s.messages.Create(ctx, nm)
	if errors.Is(err, repositories.ErrDuplicateMessage) {
		return observability.OutcomeDuplicate, nil
	}
	if err != nil {
		return observability.OutcomeFailed, fmt.Errorf("store message chat=%d: %w", chat.ID, err)
	}
	log.Printf("[wa:webhook] stored chat=%d message=%d new_chat=%t", chat.ID, msg.ID, created)

	s.hub.BroadcastMessage(msg)
	publishEvent(ctx, s.events, events.RoutingMessageCreated, chat.ID, msg.ID, msg)
	if created {
		publishEvent(ctx, s.events, events.RoutingChatCreated, chat.ID, 0, chat)
		body := fmt.Sprintf("chat=%d number=%s name=%s", chat.ID, in.From, in.ProfileName)
		if err := s.alerts.Alert(ctx, "New WhatsApp contact", body); err != nil {
			log.Printf("[wa:webhook] alert chat=%d: %v", chat.ID, err)
		}
	}

	if text, ok := settings.AutoReply(); ok && s.dispatcher != nil {
		res, err := s.dispatcher.SendAutomated(ctx, chat, s.systemUserID, text)
		switch {
		case err != nil:
			log.Printf("[wa:webhook][autoreply] chat=%d: %v", chat.ID, err)
		case res.Warning != "":
			log.Printf("[wa:webhook][autoreply] chat=%d message=%d: %s", chat.ID, res.Message.ID, res.Warning)
		}
	}
	return observability.OutcomeStored, nil
}

func (s *Ingestor) leadFor(ctx context.Context, phone string) *int64 {
	lead, err := s.leads.FindByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, repositories.ErrLeadNotFound) {
			log.Printf("[wa:webhook] lead lookup %s: %v", phone, err)
		}
		return nil
	}
	return &lead.ID
}
