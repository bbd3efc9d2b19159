package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/sponsor-points-backend/internal/common/errors"
	"github.com/open-builders/sponsor-points-backend/internal/common/logger"
	"github.com/open-builders/sponsor-points-backend/internal/domain/sponsor"
	"github.com/open-builders/sponsor-points-backend/internal/service/membership"
)

const (
	DefaultCron        = "*/5 8-23 * * *"
	DefaultWarmupDelay = 30 * time.Second
)

// Trigger names what started a tick.
type Trigger string

const (
	TriggerCron   Trigger = "cron"
	TriggerWarmup Trigger = "warmup"
	TriggerManual Trigger = "manual"
)

type ChannelLister interface {
	ListActive(ctx context.Context) ([]sponsor.Channel, error)
}

type Auditor interface {
	AuditAll(ctx context.Context, channels []sponsor.Channel) int
}

type Reconciler interface {
	ReconcileChannels(ctx context.Context, channels []sponsor.Channel) (membership.BatchResult, error)
}

// TickStore shares tick ownership and the last report between instances.
type TickStore interface {
	AcquireLease(ctx context.Context, runID string) (release func(), ok bool, err error)
	SaveReport(ctx context.Context, v any) error
	LoadReport(ctx context.Context, out any) (bool, error)
}

// TickReport describes one finished tick.
type TickReport struct {
	RunID              string                  `json:"run_id"`
	Trigger            Trigger                 `json:"trigger"`
	StartedAt          time.Time               `json:"started_at"`
	FinishedAt         time.Time               `json:"finished_at"`
	ActiveChannels     int                     `json:"active_channels"`
	AccessibleChannels int                     `json:"accessible_channels"`
	SkipReason         string                  `json:"skip_reason,omitempty"`
	Batch              *membership.BatchResult `json:"batch,omitempty"`
	Error              string                  `json:"error,omitempty"`
}

type Status struct {
	IsRunning          bool        `json:"is_running"`
	NextRunDescription string      `json:"next_run_description"`
	NextRun            *time.Time  `json:"next_run,omitempty"`
	LastTick           *TickReport `json:"last_tick,omitempty"`
}

type Options struct {
	Cron        string
	Location    *time.Location
	WarmupDelay time.Duration
	// Store is optional; without it ticks are coordinated within this process only.
	Store  TickStore
	Logger zerolog.Logger
}

// Scheduler runs the membership tick on a cron cadence plus one warm-up run after Start.
type Scheduler struct {
	channels   ChannelLister
	auditor    Auditor
	reconciler Reconciler
	opts       Options
	schedule   cron.Schedule
	logger     zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	warmup  *time.Timer
	running bool

	tickMu sync.Mutex

	lastMu sync.RWMutex
	last   *TickReport
}

func New(channels ChannelLister, auditor Auditor, reconciler Reconciler, opts Options) (*Scheduler, error) {
	if opts.Cron == "" {
		opts.Cron = DefaultCron
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.WarmupDelay <= 0 {
		opts.WarmupDelay = DefaultWarmupDelay
	}
	schedule, err := cron.ParseStandard(opts.Cron)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "invalid cron expression %q", opts.Cron)
	}
	return &Scheduler{
		channels:   channels,
		auditor:    auditor,
		reconciler: reconciler,
		opts:       opts,
		schedule:   schedule,
		logger:     opts.Logger,
	}, nil
}

// Start registers the recurring job and arms the warm-up run. Calling Start twice is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	cl := logger.NewCronLogger(s.logger)
	c := cron.New(
		cron.WithLocation(s.opts.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := c.AddFunc(s.opts.Cron, func() { s.runScheduled(TriggerCron) })
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeValidation, "invalid cron expression %q", s.opts.Cron)
	}
	c.Start()

	s.cron = c
	s.entryID = id
	s.warmup = time.AfterFunc(s.opts.WarmupDelay, func() { s.runScheduled(TriggerWarmup) })
	s.running = true

	s.logger.Info().
		Str("cron", s.opts.Cron).
		Str("timezone", s.opts.Location.String()).
		Dur("warmup_delay", s.opts.WarmupDelay).
		Msg("Membership scheduler started")
	return nil
}

// Stop cancels future ticks. A tick already running is left to finish. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.warmup.Stop()
	s.cron.Stop()
	s.cron = nil
	s.warmup = nil
	s.running = false
	s.logger.Info().Msg("Membership scheduler stopped")
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{IsRunning: s.running}
	if s.running {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	s.mu.Unlock()

	if st.NextRun == nil && st.IsRunning {
		next := s.schedule.Next(time.Now().In(s.opts.Location))
		st.NextRun = &next
	}
	st.NextRunDescription = s.describe(st)
	st.LastTick = s.lastReport()
	return st
}

// TriggerImmediateCheck runs one tick now with the same routine as the scheduled path.
// It fails with a tick-in-progress error when a tick is already running here or on another instance.
func (s *Scheduler) TriggerImmediateCheck(ctx context.Context) (*TickReport, error) {
	return s.runTick(ctx, TriggerManual)
}

func (s *Scheduler) runScheduled(trigger Trigger) {
	if _, err := s.runTick(context.Background(), trigger); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeTickInProgress) {
			s.logger.Info().Str("trigger", string(trigger)).Msg("Membership tick skipped, previous tick still running")
			return
		}
		s.logger.Error().Err(err).Str("trigger", string(trigger)).Msg("Membership tick failed")
	}
}

func (s *Scheduler) runTick(ctx context.Context, trigger Trigger) (*TickReport, error) {
	if !s.tickMu.TryLock() {
		return nil, apperrors.NewTickInProgressError()
	}
	defer s.tickMu.Unlock()

	report := &TickReport{RunID: uuid.NewString(), Trigger: trigger, StartedAt: time.Now()}
	log := s.logger.With().Str("run_id", report.RunID).Str("trigger", string(trigger)).Logger()

	if s.opts.Store != nil {
		release, ok, err := s.opts.Store.AcquireLease(ctx, report.RunID)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("Tick lease unavailable, running without it")
		case !ok:
			return nil, apperrors.NewTickInProgressError()
		default:
			defer release()
		}
	}

	err := s.tick(ctx, report, log)
	report.FinishedAt = time.Now()
	if err != nil {
		report.Error = err.Error()
	}
	s.storeReport(report)

	log.Info().
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Int("active_channels", report.ActiveChannels).
		Int("accessible_channels", report.AccessibleChannels).
		Str("skip_reason", report.SkipReason).
		Msg("Membership tick finished")
	return report, err
}

func (s *Scheduler) tick(ctx context.Context, report *TickReport, log zerolog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
			log.Error().Interface("panic", r).Msg("Recovered from panic in membership tick")
		}
	}()

	channels, err := s.channels.ListActive(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("list active channels", err)
	}
	report.ActiveChannels = len(channels)
	if len(channels) == 0 {
		report.SkipReason = "no active sponsor channels"
		return nil
	}

	report.AccessibleChannels = s.auditor.AuditAll(ctx, channels)
	if report.AccessibleChannels == 0 {
		report.SkipReason = "bot has no access to any sponsor channel"
		return nil
	}

	batch, err := s.reconciler.ReconcileChannels(ctx, channels)
	report.Batch = &batch
	return err
}

func (s *Scheduler) storeReport(r *TickReport) {
	s.lastMu.Lock()
	s.last = r
	s.lastMu.Unlock()

	if s.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.opts.Store.SaveReport(ctx, r); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish tick report")
	}
}

// lastReport prefers the shared report when it is newer than the local one.
func (s *Scheduler) lastReport() *TickReport {
	s.lastMu.RLock()
	last := s.last
	s.lastMu.RUnlock()

	if s.opts.Store == nil {
		return last
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var shared TickReport
	found, err := s.opts.Store.LoadReport(ctx, &shared)
	if err != nil || !found {
		return last
	}
	if last == nil || shared.FinishedAt.After(last.FinishedAt) {
		return &shared
	}
	return last
}

var stepHours = regexp.MustCompile(`^\*/(\d+) (\d+)-(\d+) \* \* \*$`)

func (s *Scheduler) describe(st Status) string {
	if !st.IsRunning {
		return "not scheduled"
	}
	var what string
	if m := stepHours.FindStringSubmatch(s.opts.Cron); m != nil {
		what = fmt.Sprintf("every %s minutes from %s:00 to %s:59", m[1], m[2], m[3])
	} else {
		what = fmt.Sprintf("cron %q", s.opts.Cron)
	}
	desc := fmt.Sprintf("%s (%s)", what, s.opts.Location)
	if st.NextRun != nil {
		desc += ", next at " + st.NextRun.In(s.opts.Location).Format(time.RFC3339)
	}
	return desc
}
