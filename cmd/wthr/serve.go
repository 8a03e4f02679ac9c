package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/swelljoe/wthrdash/internal/alerts"
	"github.com/swelljoe/wthrdash/internal/handlers"
	"github.com/swelljoe/wthrdash/internal/location"
)

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web dashboard",
		Long:  `Start the HTTP dashboard on the saved (or default) location and keep it refreshed until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.ServerPort = port
			}
			return a.serve()
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default $PORT or 8080)")
	return cmd
}

func (a *app) serve() error {
	client, err := a.client()
	if err != nil {
		return err
	}
	resolver := location.NewResolver(client)

	board := handlers.NewBoard(handlers.BoardOptions{
		ErrorDuration: a.cfg.ErrorDisplayDuration,
		Permission:    a.permission(),
	})
	notifier := alerts.MultiNotifier{
		board,
		&alerts.LogNotifier{Logger: a.logger, State: a.permission()},
	}
	sched := a.newScheduler(client, board, notifier)
	defer sched.Stop()

	h := handlers.New(handlers.Deps{
		DB:        a.db,
		Dashboard: sched,
		Resolver:  resolver,
		Provider:  client,
		Board:     board,
		Locator:   a.locator(),
		Severity:  a.cfg.SeverityTable,
		Units:     a.cfg.Units,
		Logger:    a.logger,
	})

	srv := &http.Server{
		Addr:         ":" + a.cfg.ServerPort,
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			slog.String("port", a.cfg.ServerPort),
			slog.String("url", fmt.Sprintf("http://localhost:%s", a.cfg.ServerPort)),
			slog.String("database", a.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// The first load runs in the background; failures land on the board.
	loadCtx, cancelLoad := context.WithCancel(context.Background())
	defer cancelLoad()
	go func() {
		loc, err := a.startLocation(loadCtx, resolver, "")
		if err != nil {
			a.logger.Warn("no start location", slog.String("error", err.Error()))
			return
		}
		_ = sched.SetLocation(loadCtx, loc)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		a.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		a.logger.Info("server stopped gracefully")
	}
	return nil
}
