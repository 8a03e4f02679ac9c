package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/swelljoe/wthrdash/internal/alerts"
	"github.com/swelljoe/wthrdash/internal/config"
	"github.com/swelljoe/wthrdash/internal/db"
	"github.com/swelljoe/wthrdash/internal/location"
	"github.com/swelljoe/wthrdash/internal/scheduler"
	"github.com/swelljoe/wthrdash/internal/weather"
)

// app carries what every command needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *db.DB
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "wthr",
		Short:         "Weather dashboard",
		Long:          `wthr shows current conditions, forecasts and severe weather alerts for a location, in the terminal or in a browser.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.CompletionOptions.HiddenDefaultCmd = true

	root.AddCommand(
		newServeCmd(a),
		newGetCmd(a),
		newWatchCmd(a),
		newUserCmd(a),
		newThemeCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	database, err := db.Open(cfg.DBPath, cfg.StoragePrefix, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.db = database
	a.logger.Debug("database opened", slog.String("path", cfg.DBPath))
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *app) client() (*weather.Client, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return weather.NewClient(weather.Options{
		APIKey:    a.cfg.OpenWeatherAPIKey,
		Units:     a.cfg.Units,
		Lang:      a.cfg.Lang,
		MaxDays:   a.cfg.MaxForecastDays,
		MaxHourly: a.cfg.MaxHourlyEntries,
	}), nil
}

func (a *app) locator() location.Locator {
	if a.cfg.DeviceLat != nil && a.cfg.DeviceLon != nil {
		return location.FixedLocator{Lat: *a.cfg.DeviceLat, Lon: *a.cfg.DeviceLon}
	}
	return location.UnavailableLocator{}
}

// startLocation resolves query when given, otherwise falls back to the last
// viewed location and then to the configured default.
func (a *app) startLocation(ctx context.Context, resolver *location.Resolver, query string) (weather.Location, error) {
	if query != "" {
		loc, err := resolver.ResolveByQuery(ctx, query)
		if err != nil {
			return weather.Location{}, err
		}
		return *loc, nil
	}

	last, err := a.db.LastLocation()
	if err != nil {
		a.logger.Warn("failed to read last location", slog.String("error", err.Error()))
	}
	if last != nil {
		return *last, nil
	}
	return a.cfg.DefaultLocation, nil
}

func (a *app) permission() alerts.Permission {
	return alerts.Permission(a.cfg.NotificationPermission)
}

func (a *app) newScheduler(gw scheduler.Gateway, presenter scheduler.Presenter, notifier alerts.Notifier) *scheduler.Scheduler {
	deps := scheduler.Deps{
		Gateway:   gw,
		Presenter: presenter,
		Store:     a.db,
	}
	if notifier != nil {
		deps.Alerts = alerts.NewDeduper(notifier, a.db, alerts.Options{
			Table:       a.cfg.SeverityTable,
			AutoDismiss: a.cfg.NotificationDuration,
			Logger:      a.logger,
		})
	}

	return scheduler.New(deps, scheduler.Options{
		RefreshInterval: a.cfg.RefreshInterval,
		AlertInterval:   a.cfg.AlertCheckInterval,
		IncludeHourly:   a.cfg.IncludeHourly,
		AlertsEnabled:   a.cfg.AlertsEnabled && notifier != nil,
		Logger:          a.logger,
	})
}
