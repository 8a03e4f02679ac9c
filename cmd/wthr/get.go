package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/swelljoe/wthrdash/internal/location"
	"github.com/swelljoe/wthrdash/internal/weather"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		output string
		hourly bool
		here   bool
	)

	cmd := &cobra.Command{
		Use:   "get [location]",
		Short: "Print the weather for a location",
		Long: `Print current conditions, the forecast and active alerts once.

Without a location the last viewed location is used, then the configured
default. Use --here to look up the device position instead.`,
		Example: `  wthr get London
  wthr get "New York, US" -o json
  wthr get --here`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			if cmd.Flags().Changed("hourly") {
				a.cfg.IncludeHourly = hourly
			}
			return a.get(cmd.Context(), strings.Join(args, " "), here, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or json")
	cmd.Flags().BoolVar(&hourly, "hourly", true, "Include the hourly forecast")
	cmd.Flags().BoolVar(&here, "here", false, "Use the device position")
	return cmd
}

func (a *app) get(ctx context.Context, query string, here bool, output string) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	resolver := location.NewResolver(client)

	var loc weather.Location
	if here {
		found, err := resolver.ResolveDevice(ctx, a.locator())
		if err != nil {
			return errors.New(location.Message(err))
		}
		loc = *found
	} else {
		loc, err = a.startLocation(ctx, resolver, query)
		if err != nil {
			return errors.New(location.Message(err))
		}
	}

	presenter := &consolePresenter{out: a.out, quiet: true}
	sched := a.newScheduler(client, presenter, nil)
	defer sched.Stop()

	if err := sched.SetLocation(ctx, loc); err != nil {
		return errors.New(presenter.LastError())
	}
	return renderSnapshot(a.out, sched.Snapshot(), output, a.cfg.Units, a.cfg.SeverityTable)
}
