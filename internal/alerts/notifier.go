package alerts

import (
	"context"
	"errors"
	"log/slog"
)

// LogNotifier writes notifications to a logger. Used by the terminal watch
// mode.
type LogNotifier struct {
	Logger *slog.Logger
	State  Permission
}

func (n *LogNotifier) Permission() Permission {
	if n.State == "" {
		return PermissionGranted
	}
	return n.State
}

func (n *LogNotifier) Notify(ctx context.Context, note Notification) error {
	level := slog.LevelInfo
	if note.RequireInteraction {
		level = slog.LevelWarn
	}
	n.Logger.Log(ctx, level, note.Title,
		slog.String("severity", string(note.Severity)),
		slog.String("body", note.Body),
		slog.Bool("sticky", note.RequireInteraction),
	)
	return nil
}

// MultiNotifier fans a notification out to several notifiers. Permission is
// granted when any member grants it.
type MultiNotifier []Notifier

func (m MultiNotifier) Permission() Permission {
	result := PermissionDefault
	for _, n := range m {
		switch n.Permission() {
		case PermissionGranted:
			return PermissionGranted
		case PermissionDenied:
			result = PermissionDenied
		}
	}
	return result
}

func (m MultiNotifier) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if n.Permission() != PermissionGranted {
			continue
		}
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
