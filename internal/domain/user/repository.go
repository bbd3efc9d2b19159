package user

import "context"

// Repository defines persistence operations for the User aggregate.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	// EnsureTelegramUser returns the user bound to telegramID, creating it on first sight.
	EnsureTelegramUser(ctx context.Context, telegramID int64, username string) (*User, error)
	ListWithTelegramID(ctx context.Context) ([]User, error)
	// AddPoints increments the balance and recomputes the level; returns the new balance.
	AddPoints(ctx context.Context, userID int64, amount int64) (int64, error)
}
