package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swelljoe/wthrdash/internal/alerts"
	"github.com/swelljoe/wthrdash/internal/apperror"
	"github.com/swelljoe/wthrdash/internal/weather"
)

var (
	london = weather.Location{Name: "London", Country: "GB", Lat: 51.5074, Lon: -0.1278}
	paris  = weather.Location{Name: "Paris", Country: "FR", Lat: 48.8566, Lon: 2.3522}
)

type fakeGateway struct {
	mu sync.Mutex

	currentErr error
	alertsErr  error
	alerts     []weather.Alert
	// block, when set for a location name, holds FetchCurrentConditions
	// until the channel is closed.
	block map[string]chan struct{}

	currentCalls int
	alertCalls   int
	lastHourly   bool
}

func (g *fakeGateway) FetchCurrentConditions(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error) {
	g.mu.Lock()
	g.currentCalls++
	wait := g.block[loc.Name]
	err := g.currentErr
	g.mu.Unlock()

	if wait != nil {
		<-wait
	}
	if err != nil {
		return nil, err
	}
	return &weather.CurrentConditions{Description: "clear sky in " + loc.Name, Temp: weather.Float(12)}, nil
}

func (g *fakeGateway) FetchForecast(ctx context.Context, loc weather.Location, includeHourly bool) (*weather.Forecast, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastHourly = includeHourly
	return &weather.Forecast{
		Daily:  []weather.DayForecast{{Description: loc.Name}},
		Alerts: g.alerts,
	}, nil
}

func (g *fakeGateway) FetchAlerts(ctx context.Context, loc weather.Location) ([]weather.Alert, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.alertCalls++
	if g.alertsErr != nil {
		return nil, g.alertsErr
	}
	return g.alerts, nil
}

func (g *fakeGateway) set(fn func(g *fakeGateway)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func (g *fakeGateway) calls() (current, alerts int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentCalls, g.alertCalls
}

type fakePresenter struct {
	mu        sync.Mutex
	loading   int
	snapshots []*weather.Snapshot
	alerts    [][]weather.Alert
	errors    []string
}

func (p *fakePresenter) ShowLoading(weather.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading++
}

func (p *fakePresenter) ShowSnapshot(s *weather.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, s)
}

func (p *fakePresenter) ShowAlerts(_ weather.Location, alerts []weather.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alerts)
}

func (p *fakePresenter) ShowError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, msg)
}

func (p *fakePresenter) errorCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.errors)
}

type fakeEvaluator struct {
	mu      sync.Mutex
	batches [][]weather.Alert
}

func (e *fakeEvaluator) Evaluate(ctx context.Context, alerts []weather.Alert) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, alerts)
	return len(alerts), nil
}

func (e *fakeEvaluator) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.batches)
}

type memStore struct {
	mu    sync.Mutex
	saved []weather.Location
}

func (m *memStore) SaveLocation(loc weather.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, loc)
	return nil
}

// advancer is satisfied by clockwork's fake clock.
type advancer interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type harness struct {
	s         *Scheduler
	gateway   *fakeGateway
	presenter *fakePresenter
	evaluator *fakeEvaluator
	store     *memStore
	clock     advancer
}

func newHarness(t *testing.T, alertsEnabled bool) *harness {
	t.Helper()
	h := &harness{
		gateway:   &fakeGateway{},
		presenter: &fakePresenter{},
		evaluator: &fakeEvaluator{},
		store:     &memStore{},
		clock:     clockwork.NewFakeClock(),
	}
	h.s = New(Deps{
		Gateway:   h.gateway,
		Presenter: h.presenter,
		Alerts:    h.evaluator,
		Store:     h.store,
	}, Options{
		RefreshInterval: 30 * time.Minute,
		AlertInterval:   15 * time.Minute,
		IncludeHourly:   true,
		AlertsEnabled:   alertsEnabled,
		Clock:           h.clock,
		Logger:          slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
	t.Cleanup(h.s.Stop)
	return h
}

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

var tornado = weather.Alert{Event: "Tornado Warning", Description: "Take shelter", StartsAt: 100, EndsAt: 200}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestIdleDoesNothing(t *testing.T) {
	h := newHarness(t, true)

	assert.Equal(t, Idle, h.s.State())
	assert.Nil(t, h.s.Location())
	require.NoError(t, h.s.Refresh(context.Background()))
	require.NoError(t, h.s.PollAlerts(context.Background()))

	current, alerts := h.gateway.calls()
	assert.Zero(t, current)
	assert.Zero(t, alerts)
}

func TestSetLocation_Success(t *testing.T) {
	h := newHarness(t, true)
	h.gateway.alerts = []weather.Alert{tornado}

	require.NoError(t, h.s.SetLocation(context.Background(), london))

	assert.Equal(t, Ready, h.s.State())
	assert.NoError(t, h.s.LastError())

	snap := h.s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, london, snap.Location)
	assert.Equal(t, "clear sky in London", snap.Current.Description)
	assert.Equal(t, []weather.Alert{tornado}, snap.Alerts)
	assert.Equal(t, h.clock.Now(), snap.FetchedAt)
	assert.True(t, h.gateway.lastHourly)

	assert.Equal(t, 1, h.presenter.loading)
	assert.Len(t, h.presenter.snapshots, 1)
	assert.Equal(t, [][]weather.Alert{{tornado}}, h.evaluator.batches)
	assert.Equal(t, []weather.Location{london}, h.store.saved)
}

func TestSetLocation_FailureKeepsPreviousSnapshot(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.s.SetLocation(context.Background(), london))
	before := h.s.Snapshot()

	h.gateway.set(func(g *fakeGateway) { g.currentErr = apperror.Upstream(503, "Service Unavailable") })
	err := h.s.SetLocation(context.Background(), paris)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrUpstream))
	assert.Equal(t, Error, h.s.State())
	assert.Same(t, before, h.s.Snapshot())
	assert.Equal(t, []string{"Weather service error: 503 Service Unavailable"}, h.presenter.errors)
	assert.Equal(t, paris, *h.s.Location())
}

func TestSetLocation_AlertsDisabledSkipsEvaluation(t *testing.T) {
	h := newHarness(t, false)
	h.gateway.alerts = []weather.Alert{tornado}

	require.NoError(t, h.s.SetLocation(context.Background(), london))
	assert.Zero(t, h.evaluator.count())
}

func TestRefreshTimer_SurvivesTransientFailure(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.s.SetLocation(context.Background(), london))
	first := h.s.Snapshot()

	h.gateway.set(func(g *fakeGateway) { g.currentErr = errors.New("connection reset") })
	h.clock.Advance(30 * time.Minute)

	require.Eventually(t, func() bool {
		return h.presenter.errorCount() == 1
	}, waitFor, tick)
	assert.Equal(t, Error, h.s.State())
	assert.Same(t, first, h.s.Snapshot(), "prior data stays visible")
	assert.Equal(t, "Something went wrong. Please try again.", h.presenter.errors[0])

	h.gateway.set(func(g *fakeGateway) { g.currentErr = nil })
	h.clock.Advance(30 * time.Minute)

	require.Eventually(t, func() bool {
		return h.s.State() == Ready
	}, waitFor, tick)
	current, _ := h.gateway.calls()
	assert.Equal(t, 3, current)
	assert.NotSame(t, first, h.s.Snapshot())
}

func TestAlertTimer_ReplacesAlertsOnly(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.s.SetLocation(context.Background(), london))
	first := h.s.Snapshot()

	h.gateway.set(func(g *fakeGateway) { g.alerts = []weather.Alert{tornado} })
	h.clock.Advance(15 * time.Minute)

	require.Eventually(t, func() bool {
		return h.evaluator.count() == 2
	}, waitFor, tick)

	current, alerts := h.gateway.calls()
	assert.Equal(t, 1, current, "no full refresh yet")
	assert.Equal(t, 1, alerts)

	snap := h.s.Snapshot()
	assert.Equal(t, []weather.Alert{tornado}, snap.Alerts)
	assert.Equal(t, first.Current, snap.Current)
	assert.Empty(t, first.Alerts, "published snapshots are not mutated")
}

func TestPollAlerts_FailureKeepsPreviousAlerts(t *testing.T) {
	h := newHarness(t, true)
	h.gateway.alerts = []weather.Alert{tornado}
	require.NoError(t, h.s.SetLocation(context.Background(), london))

	h.gateway.set(func(g *fakeGateway) { g.alertsErr = errors.New("timeout") })
	require.Error(t, h.s.PollAlerts(context.Background()))

	assert.Equal(t, []weather.Alert{tornado}, h.s.Snapshot().Alerts)
	assert.Equal(t, Ready, h.s.State(), "alert failures do not change state")
	assert.Empty(t, h.presenter.errors)
}

func TestDisableAndEnableAlerts(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.s.SetLocation(context.Background(), london))

	h.s.DisableAlerts()
	assert.False(t, h.s.AlertsEnabled())
	h.clock.Advance(15 * time.Minute)

	assert.Never(t, func() bool {
		_, alerts := h.gateway.calls()
		return alerts > 0
	}, 50*time.Millisecond, tick)

	h.s.EnableAlerts()
	assert.True(t, h.s.AlertsEnabled())

	// The first poll after enabling runs without waiting for the timer.
	require.Eventually(t, func() bool {
		_, alerts := h.gateway.calls()
		return alerts == 1
	}, waitFor, tick)
}

func TestDisableAlerts_RefreshContinues(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.s.SetLocation(context.Background(), london))
	h.s.DisableAlerts()

	h.clock.Advance(30 * time.Minute)
	require.Eventually(t, func() bool {
		current, _ := h.gateway.calls()
		return current == 2
	}, waitFor, tick)
}

func TestEnableAlerts_WithoutLocation(t *testing.T) {
	h := newHarness(t, false)
	h.s.EnableAlerts()

	assert.True(t, h.s.AlertsEnabled())
	assert.Never(t, func() bool {
		_, alerts := h.gateway.calls()
		return alerts > 0
	}, 50*time.Millisecond, tick)
}

func TestSupersededFetchIsDiscarded(t *testing.T) {
	h := newHarness(t, false)
	release := make(chan struct{})
	h.gateway.block = map[string]chan struct{}{"London": release}

	done := make(chan error, 1)
	go func() {
		done <- h.s.SetLocation(context.Background(), london)
	}()

	require.Eventually(t, func() bool {
		current, _ := h.gateway.calls()
		return current == 1
	}, waitFor, tick)

	require.NoError(t, h.s.SetLocation(context.Background(), paris))
	close(release)
	require.NoError(t, <-done)

	snap := h.s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, paris, snap.Location)
	assert.Equal(t, "clear sky in Paris", snap.Current.Description)
	assert.Equal(t, Ready, h.s.State())

	h.presenter.mu.Lock()
	defer h.presenter.mu.Unlock()
	assert.Len(t, h.presenter.snapshots, 1)
}

func TestStop_CancelsTimers(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.s.SetLocation(context.Background(), london))

	h.s.Stop()
	h.clock.Advance(time.Hour)

	assert.Never(t, func() bool {
		current, alerts := h.gateway.calls()
		return current > 1 || alerts > 0
	}, 50*time.Millisecond, tick)
}

type slowNotifier struct {
	mu   sync.Mutex
	sent int
}

func (n *slowNotifier) Permission() alerts.Permission { return alerts.PermissionGranted }

func (n *slowNotifier) Notify(ctx context.Context, _ alerts.Notification) error {
	time.Sleep(20 * time.Millisecond)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	return nil
}

func (n *slowNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}

type memAlertLog struct {
	mu  sync.Mutex
	ids []weather.Identity
}

func (m *memAlertLog) NotifiedAlerts() ([]weather.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]weather.Identity(nil), m.ids...), nil
}

func (m *memAlertLog) SaveNotifiedAlerts(ids []weather.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append([]weather.Identity(nil), ids...)
	return nil
}

func TestTimersFiringTogether_NotifyOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gateway := &fakeGateway{}
	notifier := &slowNotifier{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	s := New(Deps{
		Gateway:   gateway,
		Presenter: &fakePresenter{},
		Alerts: alerts.NewDeduper(notifier, &memAlertLog{}, alerts.Options{
			Clock:  clock,
			Logger: logger,
		}),
	}, Options{
		RefreshInterval: 30 * time.Minute,
		AlertInterval:   15 * time.Minute,
		AlertsEnabled:   true,
		Clock:           clock,
		Logger:          logger,
	})
	t.Cleanup(s.Stop)

	require.NoError(t, s.SetLocation(context.Background(), london))

	warning := weather.Alert{
		Event:    "Tornado Warning",
		StartsAt: clock.Now().Unix(),
		EndsAt:   clock.Now().Add(6 * time.Hour).Unix(),
	}
	gateway.set(func(g *fakeGateway) { g.alerts = []weather.Alert{warning} })

	// At 30m the refresh and the alert re-poll are both due.
	clock.Advance(30 * time.Minute)

	require.Eventually(t, func() bool {
		current, polls := gateway.calls()
		return current == 2 && polls >= 1
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		return notifier.count() == 1
	}, waitFor, tick)
	assert.Never(t, func() bool {
		return notifier.count() > 1
	}, 150*time.Millisecond, tick)
}
