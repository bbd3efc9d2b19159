package sponsor

import "time"

// Channel is a sponsor Telegram channel users join to earn points.
// ChannelID is what the Bot API accepts as chat_id: a numeric id or an @username.
type Channel struct {
	ID              int64      `json:"id"`
	ChannelID       string     `json:"channel_id"`
	Title           string     `json:"title"`
	Username        string     `json:"username,omitempty"`
	Description     string     `json:"description,omitempty"`
	PointsReward    int64      `json:"points_reward"`
	IsActive        bool       `json:"is_active"`
	BotHasAccess    bool       `json:"bot_has_access"`
	LastAccessCheck *time.Time `json:"last_access_check,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Membership is the last known state of one (user, channel) pair. At most one row exists per pair.
type Membership struct {
	UserID       int64      `json:"user_id"`
	ChannelID    int64      `json:"channel_id"`
	IsMember     bool       `json:"is_member"`
	PointsEarned int64      `json:"points_earned"`
	JoinedAt     *time.Time `json:"joined_at,omitempty"`
	LeftAt       *time.Time `json:"left_at,omitempty"`
	LastChecked  time.Time  `json:"last_checked"`
	CheckCount   int64      `json:"check_count"`
}

// Observe applies one membership observation to the previous record (nil if none) and
// returns the points to award together with the record to store. Points are awarded only on
// an absent/false -> true transition.
func Observe(prev *Membership, userID, channelID int64, isMember bool, reward int64, now time.Time) (int64, Membership) {
	next := Membership{
		UserID:      userID,
		ChannelID:   channelID,
		IsMember:    isMember,
		LastChecked: now,
		CheckCount:  1,
	}
	wasMember := false
	if prev != nil {
		wasMember = prev.IsMember
		next.PointsEarned = prev.PointsEarned
		next.JoinedAt = prev.JoinedAt
		next.LeftAt = prev.LeftAt
		next.CheckCount = prev.CheckCount + 1
	}

	var award int64
	switch {
	case isMember && !wasMember:
		if reward > 0 {
			award = reward
		}
		t := now
		next.JoinedAt = &t
	case !isMember && wasMember:
		t := now
		next.LeftAt = &t
	}
	next.PointsEarned += award
	return award, next
}
