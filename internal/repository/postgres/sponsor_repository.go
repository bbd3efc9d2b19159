package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/open-builders/sponsor-points-backend/internal/domain/sponsor"
)

const uniqueViolation = "23505"

// ErrChannelExists is returned by Create when the Telegram channel is already registered.
var ErrChannelExists = errors.New("sponsor channel already exists")

// SponsorRepository persists sponsor channels and user memberships.
type SponsorRepository struct {
	db *sql.DB
}

var _ sponsor.Repository = (*SponsorRepository)(nil)

func NewSponsorRepository(db *sql.DB) *SponsorRepository { return &SponsorRepository{db: db} }

const channelColumns = `id, channel_id, title, COALESCE(username, ''), COALESCE(description, ''), points_reward, is_active, bot_has_access, last_access_check, created_at, updated_at`

func scanChannel(row rowScanner) (*sponsor.Channel, error) {
	var (
		ch        sponsor.Channel
		lastCheck sql.NullTime
	)
	if err := row.Scan(&ch.ID, &ch.ChannelID, &ch.Title, &ch.Username, &ch.Description, &ch.PointsReward,
		&ch.IsActive, &ch.BotHasAccess, &lastCheck, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
		return nil, err
	}
	if lastCheck.Valid {
		t := lastCheck.Time
		ch.LastAccessCheck = &t
	}
	return &ch, nil
}

func (r *SponsorRepository) queryChannels(ctx context.Context, q string, args ...any) ([]sponsor.Channel, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sponsor.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ch)
	}
	return out, rows.Err()
}

// ListActive returns active channels regardless of bot access, ordered by id.
func (r *SponsorRepository) ListActive(ctx context.Context) ([]sponsor.Channel, error) {
	q := `SELECT ` + channelColumns + ` FROM sponsor_channels WHERE is_active ORDER BY id`
	return r.queryChannels(ctx, q)
}

// List returns all channels, newest first.
func (r *SponsorRepository) List(ctx context.Context, limit, offset int) ([]sponsor.Channel, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + channelColumns + ` FROM sponsor_channels ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	return r.queryChannels(ctx, q, limit, offset)
}

// GetByID returns a channel by internal id. Returns nil if not found.
func (r *SponsorRepository) GetByID(ctx context.Context, id int64) (*sponsor.Channel, error) {
	q := `SELECT ` + channelColumns + ` FROM sponsor_channels WHERE id=$1`
	ch, err := scanChannel(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ch, err
}

// Create inserts a channel and fills ID and timestamps.
func (r *SponsorRepository) Create(ctx context.Context, ch *sponsor.Channel) error {
	const q = `
	INSERT INTO sponsor_channels (channel_id, title, username, description, points_reward, is_active, bot_has_access, last_access_check)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)
	RETURNING id, created_at, updated_at`
	var lastCheck any
	if ch.LastAccessCheck != nil {
		lastCheck = *ch.LastAccessCheck
	}
	err := r.db.QueryRowContext(ctx, q,
		ch.ChannelID, ch.Title, ch.Username, ch.Description, ch.PointsReward, ch.IsActive, ch.BotHasAccess, lastCheck,
	).Scan(&ch.ID, &ch.CreatedAt, &ch.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrChannelExists
	}
	return err
}

// Deactivate soft-deletes a channel. Memberships are kept.
func (r *SponsorRepository) Deactivate(ctx context.Context, id int64) error {
	const q = `UPDATE sponsor_channels SET is_active = FALSE, updated_at = now() WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SponsorRepository) UpdateAccess(ctx context.Context, id int64, hasAccess bool, checkedAt time.Time) error {
	const q = `UPDATE sponsor_channels SET bot_has_access=$2, last_access_check=$3, updated_at = now() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, hasAccess, checkedAt)
	return err
}

// UpdateAccessByChatID updates every channel row registered under chatID and returns the number of rows touched.
func (r *SponsorRepository) UpdateAccessByChatID(ctx context.Context, chatID string, hasAccess bool, checkedAt time.Time) (int64, error) {
	const q = `UPDATE sponsor_channels SET bot_has_access=$2, last_access_check=$3, updated_at = now() WHERE channel_id=$1`
	res, err := r.db.ExecContext(ctx, q, chatID, hasAccess, checkedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const membershipColumns = `user_id, channel_id, is_member, points_earned, joined_at, left_at, last_checked, check_count`

func scanMembership(row rowScanner) (*sponsor.Membership, error) {
	var (
		m              sponsor.Membership
		joined, leftAt sql.NullTime
	)
	if err := row.Scan(&m.UserID, &m.ChannelID, &m.IsMember, &m.PointsEarned, &joined, &leftAt, &m.LastChecked, &m.CheckCount); err != nil {
		return nil, err
	}
	if joined.Valid {
		t := joined.Time
		m.JoinedAt = &t
	}
	if leftAt.Valid {
		t := leftAt.Time
		m.LeftAt = &t
	}
	return &m, nil
}

// GetMembership returns the stored state of a pair. Returns nil if the pair was never observed.
func (r *SponsorRepository) GetMembership(ctx context.Context, userID, channelID int64) (*sponsor.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM user_sponsor_memberships WHERE user_id=$1 AND channel_id=$2`
	m, err := scanMembership(r.db.QueryRowContext(ctx, q, userID, channelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// UpsertMembership writes the full row for the pair; the primary key keeps one row per pair.
func (r *SponsorRepository) UpsertMembership(ctx context.Context, m *sponsor.Membership) error {
	const q = `
	INSERT INTO user_sponsor_memberships (user_id, channel_id, is_member, points_earned, joined_at, left_at, last_checked, check_count)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (user_id, channel_id) DO UPDATE SET
		is_member = EXCLUDED.is_member,
		points_earned = EXCLUDED.points_earned,
		joined_at = EXCLUDED.joined_at,
		left_at = EXCLUDED.left_at,
		last_checked = EXCLUDED.last_checked,
		check_count = EXCLUDED.check_count`
	_, err := r.db.ExecContext(ctx, q,
		m.UserID, m.ChannelID, m.IsMember, m.PointsEarned, nullTime(m.JoinedAt), nullTime(m.LeftAt), m.LastChecked, m.CheckCount,
	)
	return err
}

// ListUserMemberships returns every observed pair of the user, most recently checked first.
func (r *SponsorRepository) ListUserMemberships(ctx context.Context, userID int64) ([]sponsor.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM user_sponsor_memberships WHERE user_id=$1 ORDER BY last_checked DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sponsor.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
