package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"furniplan/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// CountExisting returns how many of ids belong to real users.
	CountExisting(ctx context.Context, ids []int64) (int, error)
	Create(ctx context.Context, u *models.User) error
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT id, name, email, password_hash, role_id FROM users WHERE id = $1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx,
		`SELECT id, name, email, password_hash, role_id FROM users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email))
}

func (r *userRepository) getOne(ctx context.Context, q string, arg any) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) CountExisting(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE id = ANY($1)`, pq.Array(ids))
	return n, err
}

func (r *userRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.QueryRowxContext(ctx, `
        INSERT INTO users (name, email, password_hash, role_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id`, u.Name, strings.TrimSpace(u.Email), u.PasswordHash, u.RoleID).Scan(&u.ID)
}
