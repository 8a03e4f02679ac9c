// Package alerts raises one user notification per weather alert occurrence
// and remembers which occurrences were already notified.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/swelljoe/wthrdash/internal/weather"
)

// Permission is the platform notification permission state.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// Notification is what gets shown to the user.
type Notification struct {
	Title              string           `json:"title"`
	Body               string           `json:"body"`
	Tag                string           `json:"tag"`
	Severity           weather.Severity `json:"severity"`
	RequireInteraction bool             `json:"require_interaction"`
	AutoDismiss        time.Duration    `json:"auto_dismiss"`
}

// Notifier is the platform notification service. Permission is only read,
// never requested.
type Notifier interface {
	Permission() Permission
	Notify(ctx context.Context, n Notification) error
}

// LogStore persists the identities of notified alerts.
type LogStore interface {
	NotifiedAlerts() ([]weather.Identity, error)
	SaveNotifiedAlerts(ids []weather.Identity) error
}

// Deduper notifies each alert occurrence at most once.
type Deduper struct {
	notifier    Notifier
	store       LogStore
	table       weather.SeverityTable
	autoDismiss time.Duration
	clock       clockwork.Clock
	logger      *slog.Logger

	// mu is held from loading the log until it is saved again.
	mu sync.Mutex
}

type Options struct {
	Table       weather.SeverityTable
	AutoDismiss time.Duration
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

func NewDeduper(notifier Notifier, store LogStore, opts Options) *Deduper {
	if opts.Table == nil {
		opts.Table = weather.DefaultSeverityTable
	}
	if opts.AutoDismiss <= 0 {
		opts.AutoDismiss = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Deduper{
		notifier:    notifier,
		store:       store,
		table:       opts.Table,
		autoDismiss: opts.AutoDismiss,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
}

func tagFor(id weather.Identity) string {
	return fmt.Sprintf("%s|%d|%d", id.Event, id.StartsAt, id.EndsAt)
}

// NotificationFor builds the notification for a, classified with table.
func NotificationFor(a weather.Alert, table weather.SeverityTable, autoDismiss time.Duration) Notification {
	sev := table.Classify(a)
	n := Notification{
		Title:    fmt.Sprintf("%s Weather Alert: %s", strings.ToUpper(string(sev)), a.Event),
		Body:     a.Description,
		Tag:      tagFor(a.Identity()),
		Severity: sev,
	}
	if sev == weather.SeveritySevere {
		n.RequireInteraction = true
	} else {
		n.AutoDismiss = autoDismiss
	}
	return n
}

// Evaluate notifies every alert whose identity is not in the log yet, then
// records them. It returns the number of notifications raised. Nothing
// happens unless notification permission is granted.
func (d *Deduper) Evaluate(ctx context.Context, alerts []weather.Alert) (int, error) {
	if d.notifier.Permission() != PermissionGranted {
		return 0, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	logged, err := d.store.NotifiedAlerts()
	if err != nil {
		return 0, fmt.Errorf("loading notified alerts: %w", err)
	}

	current := make(map[weather.Identity]bool, len(alerts))
	for _, a := range alerts {
		current[a.Identity()] = true
	}

	// Drop expired occurrences unless the provider still reports them.
	now := d.clock.Now().Unix()
	seen := make(map[weather.Identity]bool, len(logged)+len(alerts))
	kept := make([]weather.Identity, 0, len(logged)+len(alerts))
	for _, id := range logged {
		if seen[id] {
			continue
		}
		if id.EndsAt < now && !current[id] {
			continue
		}
		seen[id] = true
		kept = append(kept, id)
	}

	notified := 0
	for _, a := range alerts {
		id := a.Identity()
		if seen[id] {
			continue
		}
		seen[id] = true

		n := NotificationFor(a, d.table, d.autoDismiss)
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.logger.Warn("notification failed",
				slog.String("event", a.Event),
				slog.String("error", err.Error()),
			)
			// Not recorded, so the next poll retries it.
			delete(seen, id)
			continue
		}
		kept = append(kept, id)
		notified++
	}

	if notified == 0 && len(kept) == len(logged) {
		return 0, nil
	}
	if err := d.store.SaveNotifiedAlerts(kept); err != nil {
		return notified, fmt.Errorf("saving notified alerts: %w", err)
	}
	return notified, nil
}
