package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/swelljoe/wthrdash/internal/alerts"
	"github.com/swelljoe/wthrdash/internal/location"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		output   string
		noAlerts bool
	)

	cmd := &cobra.Command{
		Use:   "watch [location]",
		Short: "Keep the weather on screen and notify on new alerts",
		Long: `Print the weather, then reprint it on every refresh and report new
severe weather alerts until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			if noAlerts {
				a.cfg.AlertsEnabled = false
			}
			return a.watch(cmd.Context(), strings.Join(args, " "), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or json")
	cmd.Flags().BoolVar(&noAlerts, "no-alerts", false, "Do not notify on new alerts")
	return cmd
}

func (a *app) watch(ctx context.Context, query, output string) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	resolver := location.NewResolver(client)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := a.startLocation(ctx, resolver, query)
	if err != nil {
		return errors.New(location.Message(err))
	}

	presenter := &consolePresenter{
		out:    a.out,
		format: output,
		units:  a.cfg.Units,
		table:  a.cfg.SeverityTable,
	}
	notifier := &alerts.LogNotifier{Logger: a.logger, State: a.permission()}
	sched := a.newScheduler(client, presenter, notifier)

	// Timers are only armed by a successful load, so there is nothing to
	// watch after a failed first one.
	if err := sched.SetLocation(ctx, loc); err != nil {
		sched.Stop()
		return errors.New(presenter.LastError())
	}

	<-ctx.Done()
	a.logger.Info("stopping watch")
	sched.Stop()
	return nil
}
