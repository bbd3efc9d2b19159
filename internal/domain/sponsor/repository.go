package sponsor

import (
	"context"
	"time"
)

// Repository defines persistence operations for sponsor channels and memberships.
type Repository interface {
	ListActive(ctx context.Context) ([]Channel, error)
	List(ctx context.Context, limit, offset int) ([]Channel, error)
	GetByID(ctx context.Context, id int64) (*Channel, error)
	Create(ctx context.Context, ch *Channel) error
	Deactivate(ctx context.Context, id int64) error
	// UpdateAccess stores the bot access flag and the time it was observed.
	UpdateAccess(ctx context.Context, id int64, hasAccess bool, checkedAt time.Time) error
	// UpdateAccessByChatID is UpdateAccess keyed by the Telegram chat id.
	UpdateAccessByChatID(ctx context.Context, chatID string, hasAccess bool, checkedAt time.Time) (int64, error)

	GetMembership(ctx context.Context, userID, channelID int64) (*Membership, error)
	UpsertMembership(ctx context.Context, m *Membership) error
	ListUserMemberships(ctx context.Context, userID int64) ([]Membership, error)
}
