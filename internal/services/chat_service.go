package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"furniplan/internal/models"
	"furniplan/internal/pdf"
	"furniplan/internal/repositories"
	"furniplan/internal/utils"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
	maxTitleLength      = 200
)

// ChatService is the operator-facing side of the conversation store. Every
// call is scoped to chats the caller participates in.
type ChatService struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
	leads    repositories.LeadRepository
	hub      Broadcaster
	pdf      pdf.TranscriptGenerator
}

func NewChatService(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	leads repositories.LeadRepository,
	hub Broadcaster,
	transcripts pdf.TranscriptGenerator,
) *ChatService {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	return &ChatService{chats: chats, messages: messages, users: users, leads: leads, hub: hub, pdf: transcripts}
}

func (s *ChatService) ListChats(ctx context.Context, userID int64, f models.ChatFilter) ([]models.Chat, error) {
	if f.Type != nil && !f.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidChatInput, *f.Type)
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidChatInput, *f.Status)
	}
	chats, err := s.chats.ListForUser(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	return chats, nil
}

func (s *ChatService) GetChat(ctx context.Context, chatID, userID int64) (*models.Chat, error) {
	chat, err := s.chats.GetForParticipant(ctx, chatID, userID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", chatID, err)
	}
	return chat, nil
}

func (s *ChatService) CreateChat(ctx context.Context, userID int64, in models.CreateChatInput) (*models.Chat, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidChatInput, in.Type)
	}
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if in.Type == models.ChatTypeWhatsApp {
		in.IsWhatsAppIntegrated = true
	}
	if in.IsWhatsAppIntegrated {
		if in.WhatsAppNumber == nil {
			return nil, fmt.Errorf("%w: whatsAppNumber is required for integrated chats", ErrInvalidChatInput)
		}
	}
	if in.WhatsAppNumber != nil {
		phone, err := utils.NormalizePhone(*in.WhatsAppNumber)
		if err != nil {
			return nil, fmt.Errorf("%w: whatsAppNumber: %v", ErrInvalidChatInput, err)
		}
		in.WhatsAppNumber = &phone
	}

	members := uniqueIDs(append([]int64{userID}, in.ParticipantIDs...))
	if in.Type == models.ChatTypeDirect && len(members) != 2 {
		return nil, fmt.Errorf("%w: direct chats have exactly two participants", ErrInvalidChatInput)
	}
	if err := s.checkUsers(ctx, members); err != nil {
		return nil, err
	}
	if err := s.checkLead(ctx, in.LeadID); err != nil {
		return nil, err
	}
	in.ParticipantIDs = members

	chat, err := s.chats.Create(ctx, userID, in)
	if errors.Is(err, repositories.ErrWhatsAppChatExists) {
		return nil, ErrChatConflict
	}
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	log.Printf("[chat][create] chat=%d type=%s by=%d participants=%d", chat.ID, chat.Type, userID, len(chat.Participants))
	return chat, nil
}

func (s *ChatService) UpdateChat(ctx context.Context, chatID, userID int64, in models.UpdateChatInput) (*models.Chat, error) {
	chat, err := s.GetChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidChatInput, *in.Status)
		}
		if !canTransition(chat.Status, *in.Status) {
			return nil, ErrInvalidStatusTransition
		}
	}
	if in.WhatsAppNumber != nil {
		phone, err := utils.NormalizePhone(*in.WhatsAppNumber)
		if err != nil {
			return nil, fmt.Errorf("%w: whatsAppNumber: %v", ErrInvalidChatInput, err)
		}
		in.WhatsAppNumber = &phone
	}
	if in.IsWhatsAppIntegrated != nil && *in.IsWhatsAppIntegrated && in.WhatsAppNumber == nil && chat.WhatsAppNumber == nil {
		return nil, fmt.Errorf("%w: whatsAppNumber is required for integrated chats", ErrInvalidChatInput)
	}
	if in.IsWhatsAppIntegrated != nil && !*in.IsWhatsAppIntegrated && chat.Type == models.ChatTypeWhatsApp {
		return nil, fmt.Errorf("%w: whatsapp chats stay integrated", ErrInvalidChatInput)
	}
	if in.ParticipantIDs != nil {
		members := uniqueIDs(append([]int64{chat.CreatedBy}, in.ParticipantIDs...))
		if err := s.checkUsers(ctx, members); err != nil {
			return nil, err
		}
		in.ParticipantIDs = members
	}

	updated, err := s.chats.Update(ctx, chatID, in)
	switch {
	case errors.Is(err, repositories.ErrChatNotFound):
		return nil, ErrChatNotFound
	case errors.Is(err, repositories.ErrWhatsAppChatExists):
		return nil, ErrChatConflict
	case err != nil:
		return nil, fmt.Errorf("update chat %d: %w", chatID, err)
	}
	return updated, nil
}

// ArchiveChat is idempotent; chats are never deleted.
func (s *ChatService) ArchiveChat(ctx context.Context, chatID, userID int64) error {
	if _, err := s.GetChat(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.chats.Archive(ctx, chatID); err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return ErrChatNotFound
		}
		return fmt.Errorf("archive chat %d: %w", chatID, err)
	}
	log.Printf("[chat][archive] chat=%d by=%d", chatID, userID)
	return nil
}

// ListMessages returns a page in ascending send order and marks what the
// caller has now seen as read.
func (s *ChatService) ListMessages(ctx context.Context, chatID, userID int64, q models.MessageQuery) ([]models.Message, error) {
	if _, err := s.GetChat(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if q.Before != nil && q.After != nil && !q.After.Before(*q.Before) {
		return nil, fmt.Errorf("%w: after must be earlier than before", ErrInvalidMessageInput)
	}
	q.Limit = clampLimit(q.Limit)

	msgs, err := s.messages.List(ctx, chatID, q)
	if err != nil {
		return nil, fmt.Errorf("list messages chat=%d: %w", chatID, err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	if err := s.MarkDeliveredAsRead(ctx, chatID, userID, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkDeliveredAsRead stamps read_at on the listed messages the reader did
// not author, updating the slice in place.
func (s *ChatService) MarkDeliveredAsRead(ctx context.Context, chatID, readerID int64, msgs []models.Message) error {
	var ids []int64
	for _, m := range msgs {
		if m.SenderID != readerID && m.ReadAt == nil {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	readAt, err := s.messages.MarkRead(ctx, chatID, readerID, ids)
	if err != nil {
		return fmt.Errorf("mark read chat=%d: %w", chatID, err)
	}
	marked := make([]int64, 0, len(readAt))
	for i := range msgs {
		if t, ok := readAt[msgs[i].ID]; ok {
			if t.Before(msgs[i].SentAt) {
				t = msgs[i].SentAt
			}
			msgs[i].ReadAt = &t
			marked = append(marked, msgs[i].ID)
		}
	}
	s.hub.BroadcastRead(chatID, readerID, marked)
	return nil
}

func (s *ChatService) MarkMessageRead(ctx context.Context, chatID, messageID, userID int64) (*models.Message, error) {
	if _, err := s.GetChat(ctx, chatID, userID); err != nil {
		return nil, err
	}
	msg, err := s.messages.Get(ctx, chatID, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", messageID, err)
	}
	msgs := []models.Message{*msg}
	if err := s.MarkDeliveredAsRead(ctx, chatID, userID, msgs); err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

func (s *ChatService) MarkSuggestionUsed(ctx context.Context, chatID, suggestionID, userID int64) (*models.AISuggestedReply, error) {
	if _, err := s.GetChat(ctx, chatID, userID); err != nil {
		return nil, err
	}
	sug, err := s.messages.MarkSuggestionUsed(ctx, chatID, suggestionID)
	if errors.Is(err, repositories.ErrSuggestionNotFound) {
		return nil, ErrSuggestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark suggestion %d used: %w", suggestionID, err)
	}
	return sug, nil
}

// ExportTranscript writes the whole chat as PDF. It does not mark anything read.
func (s *ChatService) ExportTranscript(ctx context.Context, chatID, userID int64, w io.Writer) error {
	chat, err := s.GetChat(ctx, chatID, userID)
	if err != nil {
		return err
	}
	msgs, err := s.messages.ListAll(ctx, chatID)
	if err != nil {
		return fmt.Errorf("list transcript chat=%d: %w", chatID, err)
	}
	return s.pdf.Transcript(w, chat, msgs)
}

func (s *ChatService) checkUsers(ctx context.Context, ids []int64) error {
	n, err := s.users.CountExisting(ctx, ids)
	if err != nil {
		return fmt.Errorf("check participants: %w", err)
	}
	if n != len(ids) {
		return fmt.Errorf("%w: unknown participant", ErrInvalidChatInput)
	}
	return nil
}

func (s *ChatService) checkLead(ctx context.Context, leadID *int64) error {
	if leadID == nil {
		return nil
	}
	_, err := s.leads.GetByID(ctx, *leadID)
	if errors.Is(err, repositories.ErrLeadNotFound) {
		return fmt.Errorf("%w: lead %d not found", ErrInvalidChatInput, *leadID)
	}
	return err
}

func validateTitle(title *string) error {
	if title == nil {
		return nil
	}
	*title = strings.TrimSpace(*title)
	if len([]rune(*title)) > maxTitleLength {
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalidChatInput, maxTitleLength)
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultMessageLimit
	case limit > MaxMessageLimit:
		return MaxMessageLimit
	}
	return limit
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
