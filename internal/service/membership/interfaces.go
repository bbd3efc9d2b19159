package membership

import (
	"context"
	"time"

	"github.com/open-builders/sponsor-points-backend/internal/domain/sponsor"
	"github.com/open-builders/sponsor-points-backend/internal/domain/user"
	"github.com/open-builders/sponsor-points-backend/internal/platform/telegram"
)

// Checker is the Telegram side of reconciliation.
type Checker interface {
	CheckMembership(ctx context.Context, telegramUserID int64, channelID string) telegram.MembershipResult
	CheckChannelAccess(ctx context.Context, channelID string) bool
}

// UserStore is the subset of user persistence the reconciler needs.
type UserStore interface {
	ListWithTelegramID(ctx context.Context) ([]user.User, error)
	AddPoints(ctx context.Context, userID int64, amount int64) (int64, error)
}

// ChannelStore is the subset of sponsor persistence the reconciler and auditor need.
type ChannelStore interface {
	ListActive(ctx context.Context) ([]sponsor.Channel, error)
	UpdateAccess(ctx context.Context, id int64, hasAccess bool, checkedAt time.Time) error
	GetMembership(ctx context.Context, userID, channelID int64) (*sponsor.Membership, error)
	UpsertMembership(ctx context.Context, m *sponsor.Membership) error
}

// RemoteLock is a cross-process lock on one (user, channel) pair.
// Acquire fails fast when the lock is held elsewhere.
type RemoteLock interface {
	Acquire(ctx context.Context, userID, channelID int64) (release func(), err error)
}
