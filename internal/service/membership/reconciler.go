package membership

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/open-builders/sponsor-points-backend/internal/domain/sponsor"
	"github.com/open-builders/sponsor-points-backend/internal/domain/user"
)

const DefaultConcurrency = 4

// Outcome is the result of reconciling one (user, channel) pair.
type Outcome struct {
	IsMember     bool  `json:"is_member"`
	PointsEarned int64 `json:"points_earned"`
	Failed       bool  `json:"failed"`
}

// BatchResult summarises one reconciliation pass.
type BatchResult struct {
	TotalChecks      int           `json:"total_checks"`
	SuccessfulChecks int           `json:"successful_checks"`
	FailedChecks     int           `json:"failed_checks"`
	PointsAwarded    int64         `json:"points_awarded"`
	ChannelsSkipped  int           `json:"channels_skipped"`
	Duration         time.Duration `json:"duration"`
}

func (r *BatchResult) add(o Outcome) {
	r.TotalChecks++
	if o.Failed {
		r.FailedChecks++
		return
	}
	r.SuccessfulChecks++
	r.PointsAwarded += o.PointsEarned
}

type ReconcilerOptions struct {
	Concurrency int
	Locker      *PairLocker
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Reconciler observes Telegram membership for every known user in every accessible sponsor
// channel and awards the channel reward on each not-member to member transition.
type Reconciler struct {
	users    UserStore
	channels ChannelStore
	checker  Checker

	concurrency int
	locker      *PairLocker
	logger      zerolog.Logger
	now         func() time.Time
}

func NewReconciler(users UserStore, channels ChannelStore, checker Checker, opts ReconcilerOptions) *Reconciler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Locker == nil {
		opts.Locker = NewPairLocker(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{
		users:       users,
		channels:    channels,
		checker:     checker,
		concurrency: opts.Concurrency,
		locker:      opts.Locker,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// ReconcileOne checks one pair and records the observation. A failed Telegram lookup leaves
// the stored membership untouched and yields Outcome{Failed: true} together with the cause.
func (r *Reconciler) ReconcileOne(ctx context.Context, u user.User, ch sponsor.Channel) (Outcome, error) {
	if !u.HasTelegram() {
		return Outcome{Failed: true}, fmt.Errorf("user %d has no telegram id", u.ID)
	}

	unlock, err := r.locker.Lock(ctx, u.ID, ch.ID)
	if err != nil {
		return Outcome{Failed: true}, err
	}
	defer unlock()

	res := r.checker.CheckMembership(ctx, *u.TelegramID, ch.ChannelID)
	if res.Err != nil {
		return Outcome{Failed: true}, res.Err
	}

	prev, err := r.channels.GetMembership(ctx, u.ID, ch.ID)
	if err != nil {
		return Outcome{Failed: true}, fmt.Errorf("get membership: %w", err)
	}

	award, next := sponsor.Observe(prev, u.ID, ch.ID, res.IsMember, ch.PointsReward, r.now())

	// Row first, balance second: a crash in between can drop an award but never repeat it.
	if err := r.channels.UpsertMembership(ctx, &next); err != nil {
		return Outcome{Failed: true}, fmt.Errorf("upsert membership: %w", err)
	}

	if award > 0 {
		balance, err := r.users.AddPoints(ctx, u.ID, award)
		if err != nil {
			r.logger.Error().
				Err(err).
				Int64("user_id", u.ID).
				Int64("channel_id", ch.ID).
				Int64("points", award).
				Msg("Membership recorded but points were not credited")
			return Outcome{IsMember: res.IsMember, Failed: true}, fmt.Errorf("add points: %w", err)
		}
		r.logger.Info().
			Int64("user_id", u.ID).
			Int64("channel_id", ch.ID).
			Int64("points", award).
			Int64("balance", balance).
			Msg("Sponsor points awarded")
	}

	return Outcome{IsMember: res.IsMember, PointsEarned: award}, nil
}

// ReconcileAll runs one pass over the active channels as currently stored.
func (r *Reconciler) ReconcileAll(ctx context.Context) (BatchResult, error) {
	channels, err := r.channels.ListActive(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list active channels: %w", err)
	}
	return r.ReconcileChannels(ctx, channels)
}

// ReconcileChannels checks every user with a Telegram id against every channel the bot can
// read. Pairs are dispatched in channel-major listing order to a bounded pool; one pair's
// failure never stops the others.
func (r *Reconciler) ReconcileChannels(ctx context.Context, channels []sponsor.Channel) (BatchResult, error) {
	start := time.Now()
	var result BatchResult

	accessible := make([]sponsor.Channel, 0, len(channels))
	for _, ch := range channels {
		if !ch.IsActive || !ch.BotHasAccess {
			result.ChannelsSkipped++
			continue
		}
		accessible = append(accessible, ch)
	}
	if len(accessible) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	users, err := r.users.ListWithTelegramID(ctx)
	if err != nil {
		return result, fmt.Errorf("list users: %w", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.concurrency)

dispatch:
	for _, ch := range accessible {
		for _, u := range users {
			if !u.HasTelegram() {
				continue
			}
			if ctx.Err() != nil {
				break dispatch
			}
			g.Go(func() error {
				out, err := r.ReconcileOne(ctx, u, ch)
				if err != nil {
					r.logger.Debug().
						Err(err).
						Int64("user_id", u.ID).
						Str("channel_id", ch.ChannelID).
						Msg("Membership check failed")
				}
				mu.Lock()
				result.add(out)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	result.Duration = time.Since(start)
	r.logger.Info().
		Int("total", result.TotalChecks).
		Int("successful", result.SuccessfulChecks).
		Int("failed", result.FailedChecks).
		Int64("points_awarded", result.PointsAwarded).
		Int("channels_skipped", result.ChannelsSkipped).
		Dur("duration", result.Duration).
		Msg("Membership batch completed")

	return result, ctx.Err()
}
