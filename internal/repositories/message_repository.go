package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"furniplan/internal/models"
)

var (
	ErrMessageNotFound    = errors.New("message not found")
	ErrSuggestionNotFound = errors.New("suggestion not found")
	// ErrDuplicateMessage means a message with the same external id is already stored.
	ErrDuplicateMessage = errors.New("duplicate external message")
)

// MessageRepository stores messages with their attachments and suggested replies.
type MessageRepository interface {
	Create(ctx context.Context, m models.NewMessage) (*models.Message, error)
	List(ctx context.Context, chatID int64, q models.MessageQuery) ([]models.Message, error)
	ListAll(ctx context.Context, chatID int64) ([]models.Message, error)
	Get(ctx context.Context, chatID, messageID int64) (*models.Message, error)
	MarkRead(ctx context.Context, chatID, readerID int64, messageIDs []int64) (map[int64]time.Time, error)
	MarkSuggestionUsed(ctx context.Context, chatID, suggestionID int64) (*models.AISuggestedReply, error)
}

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, chat_id, sender_id, content, type, source, sent_at, read_at, is_ai_generated, external_id`

// Create writes the message, its attachments and suggestions, and bumps the
// chat's updated_at in one transaction.
func (r *messageRepository) Create(ctx context.Context, m models.NewMessage) (*models.Message, error) {
	var sentAt *time.Time
	if !m.SentAt.IsZero() {
		sentAt = &m.SentAt
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.GetContext(ctx, &msg, `
        INSERT INTO messages (chat_id, sender_id, content, type, source, sent_at, is_ai_generated, external_id)
        VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, clock_timestamp()), $7, $8)
        ON CONFLICT (external_id) DO NOTHING
        RETURNING `+messageColumns,
		m.ChatID, m.SenderID, m.Content, m.Type, m.Source, sentAt, m.IsAIGenerated, m.ExternalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDuplicateMessage
	}
	if err != nil {
		return nil, err
	}

	msg.Attachments = make([]models.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		var att models.Attachment
		err := tx.GetContext(ctx, &att, `
            INSERT INTO attachments (message_id, name, url, mime_type, size)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, message_id, name, url, mime_type, size`,
			msg.ID, a.Name, a.URL, a.MimeType, a.Size)
		if err != nil {
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	msg.AISuggestions = make([]models.AISuggestedReply, 0, len(m.AISuggestions))
	for _, s := range m.AISuggestions {
		var sug models.AISuggestedReply
		err := tx.GetContext(ctx, &sug, `
            INSERT INTO ai_suggested_replies (message_id, content)
            VALUES ($1, $2)
            RETURNING id, message_id, content, is_used`, msg.ID, s)
		if err != nil {
			return nil, err
		}
		msg.AISuggestions = append(msg.AISuggestions, sug)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = GREATEST(updated_at, $2) WHERE id = $1`, m.ChatID, msg.SentAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	out := []models.Message{msg}
	if err := r.attachSenders(ctx, out); err != nil {
		return nil, err
	}
	return &out[0], nil
}

// List pages through a chat in ascending send order. With only an after
// cursor the oldest page after it is returned; otherwise the newest page
// before the cursor (or overall).
func (r *messageRepository) List(ctx context.Context, chatID int64, q models.MessageQuery) ([]models.Message, error) {
	query, args := listQuery(chatID, q)
	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	msgs = ascendingPage(msgs)
	if err := r.hydrate(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// listQuery reads forward from an after-only cursor; every other window
// takes the newest page, which ascendingPage puts back in send order.
func listQuery(chatID int64, q models.MessageQuery) (string, []any) {
	if q.After != nil && q.Before == nil {
		return `
            SELECT ` + messageColumns + ` FROM messages
            WHERE chat_id = $1 AND sent_at > $2
            ORDER BY sent_at ASC, id ASC
            LIMIT $3`, []any{chatID, *q.After, q.Limit}
	}
	return `
            SELECT ` + messageColumns + ` FROM messages
            WHERE chat_id = $1
              AND ($2::timestamptz IS NULL OR sent_at < $2)
              AND ($3::timestamptz IS NULL OR sent_at > $3)
            ORDER BY sent_at DESC, id DESC
            LIMIT $4`, []any{chatID, q.Before, q.After, q.Limit}
}

// ascendingPage orders msgs by sent_at, ties broken by id.
func ascendingPage(msgs []models.Message) []models.Message {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].SentAt.Equal(msgs[j].SentAt) {
			return msgs[i].SentAt.Before(msgs[j].SentAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}

func (r *messageRepository) ListAll(ctx context.Context, chatID int64) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `
        SELECT `+messageColumns+` FROM messages
        WHERE chat_id = $1
        ORDER BY sent_at ASC, id ASC`, chatID)
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) Get(ctx context.Context, chatID, messageID int64) (*models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1 AND chat_id = $2`, messageID, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	msgs := []models.Message{msg}
	if err := r.hydrate(ctx, msgs); err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// MarkRead sets read_at on the given messages that were not sent by the
// reader and are still unread. read_at never precedes sent_at.
func (r *messageRepository) MarkRead(ctx context.Context, chatID, readerID int64, messageIDs []int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time)
	if len(messageIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryxContext(ctx, `
        UPDATE messages SET read_at = GREATEST(NOW(), sent_at)
        WHERE chat_id = $1 AND id = ANY($2) AND sender_id <> $3 AND read_at IS NULL
        RETURNING id, read_at`, chatID, pq.Array(messageIDs), readerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id     int64
			readAt time.Time
		)
		if err := rows.Scan(&id, &readAt); err != nil {
			return nil, err
		}
		out[id] = readAt
	}
	return out, rows.Err()
}

// MarkSuggestionUsed flips is_used to true. Repeating it is a no-op.
func (r *messageRepository) MarkSuggestionUsed(ctx context.Context, chatID, suggestionID int64) (*models.AISuggestedReply, error) {
	var sug models.AISuggestedReply
	err := r.db.GetContext(ctx, &sug, `
        UPDATE ai_suggested_replies s SET is_used = TRUE
        FROM messages m
        WHERE s.id = $1 AND s.message_id = m.id AND m.chat_id = $2
        RETURNING s.id, s.message_id, s.content, s.is_used`, suggestionID, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSuggestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sug, nil
}

func (r *messageRepository) hydrate(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]int64, len(msgs))
	index := make(map[int64]int, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
		index[msgs[i].ID] = i
		msgs[i].Attachments = []models.Attachment{}
		msgs[i].AISuggestions = []models.AISuggestedReply{}
	}

	var atts []models.Attachment
	if err := r.db.SelectContext(ctx, &atts, `
        SELECT id, message_id, name, url, mime_type, size
        FROM attachments WHERE message_id = ANY($1) ORDER BY id`, pq.Array(ids)); err != nil {
		return err
	}
	for _, a := range atts {
		i := index[a.MessageID]
		msgs[i].Attachments = append(msgs[i].Attachments, a)
	}

	var sugs []models.AISuggestedReply
	if err := r.db.SelectContext(ctx, &sugs, `
        SELECT id, message_id, content, is_used
        FROM ai_suggested_replies WHERE message_id = ANY($1) ORDER BY id`, pq.Array(ids)); err != nil {
		return err
	}
	for _, s := range sugs {
		i := index[s.MessageID]
		msgs[i].AISuggestions = append(msgs[i].AISuggestions, s)
	}
	return r.attachSenders(ctx, msgs)
}

func (r *messageRepository) attachSenders(ctx context.Context, msgs []models.Message) error {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}
	var users []models.UserSummary
	if err := r.db.SelectContext(ctx, &users,
		`SELECT id, name, email, role_id FROM users WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return err
	}
	byID := make(map[int64]models.UserSummary, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for i := range msgs {
		if u, ok := byID[msgs[i].SenderID]; ok {
			msgs[i].Sender = &u
		}
	}
	return nil
}
