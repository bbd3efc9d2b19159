package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxPointsReward      = 1_000_000
)

// Public usernames, including the 4-character collectible ones.
var channelUsernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{3,31}$`)

// ValidateChannelRef accepts the two forms the Bot API takes as chat_id for channels:
// "@username" or a negative numeric id such as -1001234567890.
func ValidateChannelRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("channel id cannot be empty")
	}

	if name, ok := strings.CutPrefix(ref, "@"); ok {
		if !channelUsernameRegex.MatchString(name) {
			return fmt.Errorf("channel username must start with a letter and contain 4-32 letters, digits or underscores")
		}
		return nil
	}

	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return fmt.Errorf("channel id must be @username or a numeric chat id")
	}
	if id >= 0 {
		return fmt.Errorf("numeric channel id must be negative")
	}
	return nil
}

// ValidateTitle checks an optional title; empty means "take it from Telegram".
func ValidateTitle(title string) error {
	if len(strings.TrimSpace(title)) > MaxTitleLength {
		return fmt.Errorf("title cannot exceed %d characters", MaxTitleLength)
	}
	return nil
}

func ValidateDescription(description string) error {
	if len(strings.TrimSpace(description)) > MaxDescriptionLength {
		return fmt.Errorf("description cannot exceed %d characters", MaxDescriptionLength)
	}
	return nil
}

// ValidatePointsReward allows zero, which registers a channel that is tracked but pays nothing.
func ValidatePointsReward(value int64) error {
	if value < 0 {
		return fmt.Errorf("points reward cannot be negative")
	}
	if value > MaxPointsReward {
		return fmt.Errorf("points reward cannot exceed %d", MaxPointsReward)
	}
	return nil
}
