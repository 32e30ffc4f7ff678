package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"

	"furniplan/internal/models"
)

var ErrLeadNotFound = errors.New("lead not found")

// LeadRepository is the read side of leads the chat needs: linking and lookup by phone.
type LeadRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Lead, error)
	FindByPhone(ctx context.Context, phone string) (*models.Lead, error)
}

type leadRepository struct {
	db *sqlx.DB
}

func NewLeadRepository(db *sqlx.DB) LeadRepository {
	return &leadRepository{db: db}
}

func (r *leadRepository) GetByID(ctx context.Context, id int64) (*models.Lead, error) {
	var lead models.Lead
	err := r.db.GetContext(ctx, &lead,
		`SELECT id, title, phone, owner_id, status, created_at FROM leads WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindByPhone matches on digits only, so "+55 (11) 9999-0000" and "551199990000"
// are the same number. The most recent lead wins.
func (r *leadRepository) FindByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return nil, ErrLeadNotFound
	}

	var lead models.Lead
	err := r.db.GetContext(ctx, &lead, `
        SELECT id, title, phone, owner_id, status, created_at
        FROM leads
        WHERE regexp_replace(COALESCE(phone, ''), '\D', '', 'g') = $1
        ORDER BY created_at DESC, id DESC
        LIMIT 1`, digits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}
