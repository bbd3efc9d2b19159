package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/open-builders/sponsor-points-backend/internal/domain/user"
)

// UserRepository reads users and maintains their point balance in Postgres.
type UserRepository struct {
	db *sql.DB
}

var _ domain.Repository = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

const userColumns = `id, telegram_id, COALESCE(username, ''), points, level, user_type, admin_level, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u  domain.User
		tg sql.NullInt64
	)
	if err := row.Scan(&u.ID, &tg, &u.Username, &u.Points, &u.Level, &u.UserType, &u.AdminLevel, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if tg.Valid {
		v := tg.Int64
		u.TelegramID = &v
	}
	return &u, nil
}

// GetByID returns a user by internal id. Returns nil if not found.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// EnsureTelegramUser inserts a regular user for telegramID or refreshes the username of the existing one.
func (r *UserRepository) EnsureTelegramUser(ctx context.Context, telegramID int64, username string) (*domain.User, error) {
	q := `
	INSERT INTO users (telegram_id, username, user_type)
	VALUES ($1, NULLIF($2, ''), 'user')
	ON CONFLICT (telegram_id) DO UPDATE SET
		username = COALESCE(EXCLUDED.username, users.username),
		updated_at = now()
	RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q, telegramID, username))
}

// ListWithTelegramID returns every user that has a non-zero Telegram id, ordered by id.
func (r *UserRepository) ListWithTelegramID(ctx context.Context) ([]domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE telegram_id IS NOT NULL AND telegram_id <> 0 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// AddPoints adds amount to the balance and stores the matching level in one transaction.
func (r *UserRepository) AddPoints(ctx context.Context, userID int64, amount int64) (balance int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const qAdd = `UPDATE users SET points = points + $2, updated_at = now() WHERE id=$1 RETURNING points`
	if err = tx.QueryRowContext(ctx, qAdd, userID, amount).Scan(&balance); err != nil {
		return 0, err
	}

	const qLevel = `UPDATE users SET level = $2 WHERE id=$1`
	if _, err = tx.ExecContext(ctx, qLevel, userID, domain.LevelForPoints(balance)); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}
