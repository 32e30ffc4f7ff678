package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"furniplan/internal/models"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	// ErrWhatsAppChatExists is returned when another active integrated chat owns the number.
	ErrWhatsAppChatExists = errors.New("active whatsapp chat already exists for number")
)

type ChatRepository interface {
	ListForUser(ctx context.Context, userID int64, f models.ChatFilter) ([]models.Chat, error)
	// GetForParticipant returns ErrChatNotFound both for a missing chat and for a non-participant.
	GetForParticipant(ctx context.Context, chatID, userID int64) (*models.Chat, error)
	Create(ctx context.Context, createdBy int64, in models.CreateChatInput) (*models.Chat, error)
	Update(ctx context.Context, chatID int64, in models.UpdateChatInput) (*models.Chat, error)
	Archive(ctx context.Context, chatID int64) error
	ResolveInbound(ctx context.Context, in models.InboundChat) (*models.Chat, bool, error)
}

type chatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepository{db: db}
}

const chatColumns = `c.id, c.type, c.title, c.status, c.is_whatsapp_integrated, c.whatsapp_number,
        c.lead_id, c.created_by, c.created_at, c.updated_at`

func (r *chatRepository) ListForUser(ctx context.Context, userID int64, f models.ChatFilter) ([]models.Chat, error) {
	q := `SELECT ` + chatColumns + `
        FROM chats c
        JOIN chat_participants p ON p.chat_id = c.id AND p.user_id = $1
        WHERE ($2::text IS NULL OR c.type = $2)
          AND ($3::text IS NULL OR c.status = $3)
          AND ($4::bigint IS NULL OR c.lead_id = $4)
        ORDER BY (c.status = 'active') DESC, c.updated_at DESC, c.id DESC`

	var chats []models.Chat
	if err := r.db.SelectContext(ctx, &chats, q, userID, f.Type, f.Status, f.LeadID); err != nil {
		return nil, err
	}
	if err := r.attachParticipants(ctx, chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *chatRepository) GetForParticipant(ctx context.Context, chatID, userID int64) (*models.Chat, error) {
	q := `SELECT ` + chatColumns + `
        FROM chats c
        JOIN chat_participants p ON p.chat_id = c.id AND p.user_id = $2
        WHERE c.id = $1`
	return r.getOne(ctx, q, chatID, userID)
}

func (r *chatRepository) get(ctx context.Context, chatID int64) (*models.Chat, error) {
	return r.getOne(ctx, `SELECT `+chatColumns+` FROM chats c WHERE c.id = $1`, chatID)
}

func (r *chatRepository) getOne(ctx context.Context, q string, args ...any) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	chats := []models.Chat{chat}
	if err := r.attachParticipants(ctx, chats); err != nil {
		return nil, err
	}
	return &chats[0], nil
}

func (r *chatRepository) Create(ctx context.Context, createdBy int64, in models.CreateChatInput) (*models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowxContext(ctx, `
        INSERT INTO chats (type, title, status, is_whatsapp_integrated, whatsapp_number, lead_id, created_by)
        VALUES ($1, $2, 'active', $3, $4, $5, $6)
        RETURNING id`,
		in.Type, in.Title, in.IsWhatsAppIntegrated, in.WhatsAppNumber, in.LeadID, createdBy,
	).Scan(&id)
	if err != nil {
		return nil, mapChatWriteErr(err)
	}
	if err := replaceParticipants(ctx, tx, id, withMember(in.ParticipantIDs, createdBy)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.get(ctx, id)
}

func (r *chatRepository) Update(ctx context.Context, chatID int64, in models.UpdateChatInput) (*models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var createdBy int64
	err = tx.QueryRowxContext(ctx, `
        UPDATE chats SET
            title = COALESCE($2, title),
            status = COALESCE($3::text, status),
            is_whatsapp_integrated = COALESCE($4, is_whatsapp_integrated),
            whatsapp_number = COALESCE($5, whatsapp_number)
        WHERE id = $1
        RETURNING created_by`,
		chatID, in.Title, in.Status, in.IsWhatsAppIntegrated, in.WhatsAppNumber,
	).Scan(&createdBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, mapChatWriteErr(err)
	}

	if in.ParticipantIDs != nil {
		// создатель всегда остаётся участником
		if err := replaceParticipants(ctx, tx, chatID, withMember(in.ParticipantIDs, createdBy)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.get(ctx, chatID)
}

func (r *chatRepository) Archive(ctx context.Context, chatID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET status = 'archived' WHERE id = $1`, chatID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// ResolveInbound returns the active integrated chat for the number, creating it
// when absent. The partial unique index makes concurrent first messages converge
// on a single chat. The bool reports whether this call created it.
func (r *chatRepository) ResolveInbound(ctx context.Context, in models.InboundChat) (*models.Chat, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var (
		id      int64
		created bool
	)
	err = tx.QueryRowxContext(ctx, `
        INSERT INTO chats (type, title, status, is_whatsapp_integrated, whatsapp_number, lead_id, created_by)
        VALUES ('whatsapp', $1, 'active', TRUE, $2, $3, $4)
        ON CONFLICT (whatsapp_number) WHERE is_whatsapp_integrated AND status = 'active' DO NOTHING
        RETURNING id`,
		in.Title, in.WhatsAppNumber, in.LeadID, in.CreatedBy,
	).Scan(&id)
	switch {
	case err == nil:
		created = true
		if err := replaceParticipants(ctx, tx, id, withMember(in.ParticipantIDs, in.CreatedBy)); err != nil {
			return nil, false, err
		}
	case errors.Is(err, sql.ErrNoRows):
		err = tx.GetContext(ctx, &id, `
            SELECT id FROM chats
            WHERE whatsapp_number = $1 AND is_whatsapp_integrated AND status = 'active'`,
			in.WhatsAppNumber)
		if err != nil {
			return nil, false, fmt.Errorf("select existing inbound chat: %w", err)
		}
	default:
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	chat, err := r.get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return chat, created, nil
}

type participantRow struct {
	ChatID int64 `db:"chat_id"`
	models.UserSummary
}

func (r *chatRepository) attachParticipants(ctx context.Context, chats []models.Chat) error {
	if len(chats) == 0 {
		return nil
	}
	ids := make([]int64, len(chats))
	index := make(map[int64]int, len(chats))
	for i := range chats {
		ids[i] = chats[i].ID
		index[chats[i].ID] = i
		chats[i].Participants = []models.UserSummary{}
	}

	var rows []participantRow
	err := r.db.SelectContext(ctx, &rows, `
        SELECT p.chat_id, u.id, u.name, u.email, u.role_id
        FROM chat_participants p
        JOIN users u ON u.id = p.user_id
        WHERE p.chat_id = ANY($1)
        ORDER BY p.chat_id, u.id`, pq.Array(ids))
	if err != nil {
		return err
	}
	for _, row := range rows {
		i := index[row.ChatID]
		chats[i].Participants = append(chats[i].Participants, row.UserSummary)
	}
	return nil
}

func replaceParticipants(ctx context.Context, tx *sqlx.Tx, chatID int64, userIDs []int64) error {
	ids := pq.Int64Array(userIDs)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chat_participants WHERE chat_id = $1 AND NOT (user_id = ANY($2))`, chatID, ids); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
        INSERT INTO chat_participants (chat_id, user_id)
        SELECT $1, unnest($2::bigint[])
        ON CONFLICT DO NOTHING`, chatID, ids)
	return err
}

// withMember returns ids plus id, deduplicated, keeping the input order.
func withMember(ids []int64, id int64) []int64 {
	seen := make(map[int64]struct{}, len(ids)+1)
	out := make([]int64, 0, len(ids)+1)
	for _, v := range append([]int64{id}, ids...) {
		if v <= 0 {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func mapChatWriteErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrWhatsAppChatExists
	}
	return err
}
