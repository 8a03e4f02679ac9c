// Package scheduler owns the active location and keeps its weather current.
//
// A Scheduler moves through Idle, Loading, Ready and Error. After the first
// successful fetch it runs two independent periodic tasks: a full refresh and
// an alerts-only re-poll. Each task has its own cancel func, so alerts can be
// switched off without touching the refresh cadence.
//
// All state is guarded by one mutex that is never held across a network call.
// Fetch results are tagged with the location they were requested for and are
// dropped if the active location changed in the meantime.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/swelljoe/wthrdash/internal/apperror"
	"github.com/swelljoe/wthrdash/internal/weather"
)

type State int

const (
	Idle State = iota
	Loading
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Gateway is the weather provider as seen by the scheduler.
type Gateway interface {
	FetchCurrentConditions(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error)
	FetchForecast(ctx context.Context, loc weather.Location, includeHourly bool) (*weather.Forecast, error)
	FetchAlerts(ctx context.Context, loc weather.Location) ([]weather.Alert, error)
}

// Presenter receives everything the user should see.
type Presenter interface {
	ShowLoading(loc weather.Location)
	ShowSnapshot(snap *weather.Snapshot)
	ShowAlerts(loc weather.Location, alerts []weather.Alert)
	ShowError(message string)
}

// AlertEvaluator raises notifications for newly seen alerts.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, alerts []weather.Alert) (int, error)
}

// LocationStore persists the active location across sessions.
type LocationStore interface {
	SaveLocation(loc weather.Location) error
}

type Deps struct {
	Gateway   Gateway
	Presenter Presenter
	Alerts    AlertEvaluator
	Store     LocationStore
}

type Options struct {
	RefreshInterval time.Duration // default 30m
	AlertInterval   time.Duration // default 15m
	IncludeHourly   bool
	AlertsEnabled   bool
	Clock           clockwork.Clock
	Logger          *slog.Logger
}

type Scheduler struct {
	gateway   Gateway
	presenter Presenter
	alerts    AlertEvaluator
	store     LocationStore

	refreshInterval time.Duration
	alertInterval   time.Duration
	includeHourly   bool
	clock           clockwork.Clock
	logger          *slog.Logger

	root       context.Context
	cancelRoot context.CancelFunc
	wg         sync.WaitGroup

	mu            sync.Mutex
	state         State
	location      *weather.Location
	snapshot      *weather.Snapshot
	lastErr       error
	alertsEnabled bool
	armed         bool
	stopped       bool
	refreshTask   context.CancelFunc
	alertTask     context.CancelFunc
}

func New(deps Deps, opts Options) *Scheduler {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Minute
	}
	if opts.AlertInterval <= 0 {
		opts.AlertInterval = 15 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	root, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gateway:         deps.Gateway,
		presenter:       deps.Presenter,
		alerts:          deps.Alerts,
		store:           deps.Store,
		refreshInterval: opts.RefreshInterval,
		alertInterval:   opts.AlertInterval,
		includeHourly:   opts.IncludeHourly,
		clock:           opts.Clock,
		logger:          opts.Logger,
		root:            root,
		cancelRoot:      cancel,
		alertsEnabled:   opts.AlertsEnabled,
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Location returns the active location, or nil when Idle.
func (s *Scheduler) Location() *weather.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

// Snapshot returns the latest published snapshot, or nil.
func (s *Scheduler) Snapshot() *weather.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// LastError returns the error of the last failed fetch, cleared on success.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) AlertsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alertsEnabled
}

// SetLocation makes loc the active location and loads it. On success both
// periodic tasks are (re)armed. On failure the previous snapshot and any
// armed tasks are left as they are.
func (s *Scheduler) SetLocation(ctx context.Context, loc weather.Location) error {
	s.mu.Lock()
	s.location = &loc
	s.state = Loading
	s.mu.Unlock()

	s.logger.Info("location changed", slog.String("location", loc.Label()))
	s.presenter.ShowLoading(loc)

	if s.store != nil {
		if err := s.store.SaveLocation(loc); err != nil {
			s.logger.Warn("failed to persist location", slog.String("error", err.Error()))
		}
	}

	return s.load(ctx, loc, true)
}

// Refresh reloads the active location. It does nothing when Idle.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.location == nil {
		s.mu.Unlock()
		return nil
	}
	loc := *s.location
	s.state = Loading
	s.mu.Unlock()

	s.presenter.ShowLoading(loc)
	return s.load(ctx, loc, false)
}

func (s *Scheduler) load(ctx context.Context, loc weather.Location, arm bool) error {
	snap, err := s.fetch(ctx, loc)

	s.mu.Lock()
	if !s.isActiveLocked(loc) {
		s.mu.Unlock()
		s.logger.Debug("discarding result for superseded location", slog.String("location", loc.Label()))
		return nil
	}

	if err != nil {
		s.state = Error
		s.lastErr = err
		s.mu.Unlock()

		s.logger.Warn("weather fetch failed",
			slog.String("location", loc.Label()),
			slog.String("error", err.Error()),
		)
		s.presenter.ShowError(apperror.UserMessage(err))
		return err
	}

	s.state = Ready
	s.snapshot = snap
	s.lastErr = nil
	if arm || !s.armed {
		s.armLocked()
	}
	evaluate := s.alertsEnabled
	s.mu.Unlock()

	s.presenter.ShowSnapshot(snap)
	if evaluate {
		s.evaluate(ctx, snap.Alerts)
	}
	return nil
}

func (s *Scheduler) fetch(ctx context.Context, loc weather.Location) (*weather.Snapshot, error) {
	var (
		current  *weather.CurrentConditions
		forecast *weather.Forecast
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cc, err := s.gateway.FetchCurrentConditions(gctx, loc)
		if err != nil {
			return fmt.Errorf("fetching current conditions: %w", err)
		}
		current = cc
		return nil
	})
	g.Go(func() error {
		fc, err := s.gateway.FetchForecast(gctx, loc, s.includeHourly)
		if err != nil {
			return fmt.Errorf("fetching forecast: %w", err)
		}
		forecast = fc
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &weather.Snapshot{
		Location:  loc,
		Current:   *current,
		Daily:     forecast.Daily,
		Hourly:    forecast.Hourly,
		Alerts:    forecast.Alerts,
		FetchedAt: s.clock.Now(),
	}, nil
}

// PollAlerts re-fetches only the alerts of the active location and replaces
// the snapshot's alerts. On failure the previous alerts stay.
func (s *Scheduler) PollAlerts(ctx context.Context) error {
	s.mu.Lock()
	if s.location == nil {
		s.mu.Unlock()
		return nil
	}
	loc := *s.location
	s.mu.Unlock()

	alerts, err := s.gateway.FetchAlerts(ctx, loc)
	if err != nil {
		s.logger.Warn("alert check failed",
			slog.String("location", loc.Label()),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.mu.Lock()
	if !s.isActiveLocked(loc) {
		s.mu.Unlock()
		return nil
	}
	if s.snapshot != nil && s.snapshot.Location.Equal(loc) {
		s.snapshot = s.snapshot.WithAlerts(alerts)
	}
	evaluate := s.alertsEnabled
	s.mu.Unlock()

	s.presenter.ShowAlerts(loc, alerts)
	if evaluate {
		s.evaluate(ctx, alerts)
	}
	return nil
}

func (s *Scheduler) evaluate(ctx context.Context, alerts []weather.Alert) {
	if s.alerts == nil {
		return
	}
	n, err := s.alerts.Evaluate(ctx, alerts)
	if err != nil {
		s.logger.Warn("alert notification failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Info("weather alerts notified", slog.Int("count", n))
	}
}

// EnableAlerts turns alert polling on. When a location is active the first
// poll runs immediately.
func (s *Scheduler) EnableAlerts() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.alertsEnabled && s.alertTask != nil {
		return
	}
	s.alertsEnabled = true
	if s.location != nil && !s.stopped {
		s.startAlertTaskLocked(true)
	}
}

// DisableAlerts stops alert polling. The refresh task keeps running.
func (s *Scheduler) DisableAlerts() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alertsEnabled = false
	if s.alertTask != nil {
		s.alertTask()
		s.alertTask = nil
	}
}

// Stop cancels both tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.refreshTask = nil
	s.alertTask = nil
	s.mu.Unlock()

	s.cancelRoot()
	s.wg.Wait()
}

func (s *Scheduler) isActiveLocked(loc weather.Location) bool {
	return s.location != nil && s.location.Equal(loc)
}

func (s *Scheduler) armLocked() {
	if s.stopped {
		return
	}
	if s.refreshTask != nil {
		s.refreshTask()
	}
	s.refreshTask = s.startTask(s.refreshInterval, false, func(ctx context.Context) {
		// Errors are already surfaced by load.
		_ = s.Refresh(ctx)
	})

	if s.alertTask != nil {
		s.alertTask()
		s.alertTask = nil
	}
	if s.alertsEnabled {
		s.startAlertTaskLocked(false)
	}
	s.armed = true
}

func (s *Scheduler) startAlertTaskLocked(immediate bool) {
	if s.alertTask != nil {
		s.alertTask()
	}
	s.alertTask = s.startTask(s.alertInterval, immediate, func(ctx context.Context) {
		_ = s.PollAlerts(ctx)
	})
}

// startTask runs fn every interval until the returned cancel func is called.
// The ticker is created before the goroutine starts so the first interval is
// measured from now.
func (s *Scheduler) startTask(interval time.Duration, immediate bool, fn func(ctx context.Context)) context.CancelFunc {
	ctx, cancel := context.WithCancel(s.root)
	ticker := s.clock.NewTicker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		if immediate {
			fn(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			}
		}
	}()

	return cancel
}
