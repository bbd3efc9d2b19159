package membership

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/sponsor-points-backend/internal/domain/sponsor"
)

// Auditor verifies that the bot can still read each sponsor channel.
type Auditor struct {
	channels ChannelStore
	checker  Checker
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAuditor(channels ChannelStore, checker Checker, logger zerolog.Logger) *Auditor {
	return &Auditor{channels: channels, checker: checker, logger: logger, now: time.Now}
}

// AuditChannel probes the channel and stores the flag when it changed. ch is updated in place.
// A failed probe counts as no access.
func (a *Auditor) AuditChannel(ctx context.Context, ch *sponsor.Channel) bool {
	hasAccess := a.checker.CheckChannelAccess(ctx, ch.ChannelID)
	if hasAccess == ch.BotHasAccess {
		return hasAccess
	}

	checkedAt := a.now()
	if err := a.channels.UpdateAccess(ctx, ch.ID, hasAccess, checkedAt); err != nil {
		a.logger.Error().Err(err).Int64("channel_id", ch.ID).Msg("Failed to store channel access flag")
	} else {
		a.logger.Info().
			Int64("channel_id", ch.ID).
			Str("telegram_channel", ch.ChannelID).
			Bool("bot_has_access", hasAccess).
			Msg("Channel access changed")
	}
	ch.BotHasAccess = hasAccess
	ch.LastAccessCheck = &checkedAt
	return hasAccess
}

// AuditAll audits every channel in order and returns how many are accessible afterwards.
func (a *Auditor) AuditAll(ctx context.Context, channels []sponsor.Channel) int {
	accessible := 0
	for i := range channels {
		if ctx.Err() != nil {
			break
		}
		if a.AuditChannel(ctx, &channels[i]) {
			accessible++
		}
	}
	return accessible
}
