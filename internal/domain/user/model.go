package user

import "time"

const (
	TypeUser  = "user"
	TypeAdmin = "admin"
)

// PointsPerLevel is the number of points needed to advance one level.
const PointsPerLevel = 1000

// User is a platform account. TelegramID is nil until the user authenticates through the mini app.
type User struct {
	ID         int64     `json:"id"`
	TelegramID *int64    `json:"telegram_id,omitempty"`
	Username   string    `json:"username"`
	Points     int64     `json:"points"`
	Level      int       `json:"level"`
	UserType   string    `json:"user_type"`   // allowed: "user", "admin"
	AdminLevel int       `json:"admin_level"` // 0 for regular users
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasTelegram reports whether the user can be checked against Telegram channels.
func (u User) HasTelegram() bool {
	return u.TelegramID != nil && *u.TelegramID != 0
}

// LevelForPoints derives the level from a point balance. Level 1 starts at zero points.
func LevelForPoints(points int64) int {
	if points < 0 {
		points = 0
	}
	return int(points/PointsPerLevel) + 1
}
