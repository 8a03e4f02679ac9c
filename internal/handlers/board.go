package handlers

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/swelljoe/wthrdash/internal/alerts"
	"github.com/swelljoe/wthrdash/internal/weather"
)

// Note is a notification currently shown on the board.
type Note struct {
	ID int `json:"id"`
	alerts.Notification
	ShownAt time.Time `json:"shown_at"`
	// ExpiresAt is zero for notifications that stay until dismissed.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Board holds what the dashboard currently shows. It is the scheduler's
// presenter and, for the web UI, the platform notification service.
//
// Transient messages are hidden lazily: reads compare against the clock, so
// no timers are needed.
type Board struct {
	clock         clockwork.Clock
	errorDuration time.Duration
	permission    alerts.Permission

	mu       sync.Mutex
	loading  bool
	location *weather.Location
	snapshot *weather.Snapshot
	errMsg   string
	errUntil time.Time
	notes    []Note
	nextID   int
}

type BoardOptions struct {
	// ErrorDuration is how long ShowError messages stay visible.
	ErrorDuration time.Duration
	Permission    alerts.Permission
	Clock         clockwork.Clock
}

func NewBoard(opts BoardOptions) *Board {
	if opts.ErrorDuration <= 0 {
		opts.ErrorDuration = 5 * time.Second
	}
	if opts.Permission == "" {
		opts.Permission = alerts.PermissionDefault
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Board{
		clock:         opts.Clock,
		errorDuration: opts.ErrorDuration,
		permission:    opts.Permission,
	}
}

func (b *Board) ShowLoading(loc weather.Location) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = true
	b.location = &loc
}

// ShowSnapshot publishes snap unless the board has since moved to another
// location, in which case the late result is dropped.
func (b *Board) ShowSnapshot(snap *weather.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.location != nil && !snap.Location.Equal(*b.location) {
		return
	}
	b.loading = false
	b.snapshot = snap
	loc := snap.Location
	b.location = &loc
	b.errMsg = ""
}

func (b *Board) ShowAlerts(loc weather.Location, list []weather.Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot != nil && b.snapshot.Location.Equal(loc) {
		b.snapshot = b.snapshot.WithAlerts(list)
	}
}

func (b *Board) ShowError(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = false
	b.errMsg = message
	b.errUntil = b.clock.Now().Add(b.errorDuration)
}

// BoardState is a consistent copy of the board.
type BoardState struct {
	Loading  bool
	Location *weather.Location
	Snapshot *weather.Snapshot
	Error    string
}

func (b *Board) State() BoardState {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := BoardState{
		Loading:  b.loading,
		Location: b.location,
		Snapshot: b.snapshot,
	}
	if b.errMsg != "" && b.clock.Now().Before(b.errUntil) {
		st.Error = b.errMsg
	}
	return st
}

func (b *Board) Permission() alerts.Permission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.permission
}

func (b *Board) SetPermission(p alerts.Permission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.permission = p
}

// Notify shows n. A notification with the same tag replaces the old one.
func (b *Board) Notify(ctx context.Context, n alerts.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.nextID++
	note := Note{ID: b.nextID, Notification: n, ShownAt: now}
	if !n.RequireInteraction && n.AutoDismiss > 0 {
		note.ExpiresAt = now.Add(n.AutoDismiss)
	}

	b.notes = slices.DeleteFunc(b.notes, func(old Note) bool {
		return n.Tag != "" && old.Tag == n.Tag
	})
	b.notes = append(b.notes, note)
	return nil
}

// Notifications returns the notifications still visible, oldest first.
func (b *Board) Notifications() []Note {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.notes = slices.DeleteFunc(b.notes, func(n Note) bool {
		return !n.ExpiresAt.IsZero() && !now.Before(n.ExpiresAt)
	})
	return slices.Clone(b.notes)
}

// Dismiss hides notification id. It reports whether it was visible.
func (b *Board) Dismiss(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	before := len(b.notes)
	b.notes = slices.DeleteFunc(b.notes, func(n Note) bool { return n.ID == id })
	return len(b.notes) != before
}
