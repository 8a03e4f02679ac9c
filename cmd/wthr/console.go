package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/swelljoe/wthrdash/internal/weather"
)

// consolePresenter prints dashboard updates to a terminal. With quiet set it
// only records the last error, for one-shot commands that print the result
// themselves.
type consolePresenter struct {
	out    io.Writer
	format string
	units  string
	table  weather.SeverityTable
	quiet  bool

	mu      sync.Mutex
	lastErr string
}

func (p *consolePresenter) ShowLoading(loc weather.Location) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "Loading weather for %s...\n", loc.Label())
}

func (p *consolePresenter) ShowSnapshot(snap *weather.Snapshot) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.format == outputText {
		fmt.Fprintf(p.out, "\n--- %s ---\n", snap.FetchedAt.Local().Format("Mon Jan 2 15:04"))
	}
	_ = renderSnapshot(p.out, snap, p.format, p.units, p.table)
}

func (p *consolePresenter) ShowAlerts(loc weather.Location, alerts []weather.Alert) {
	if p.quiet || p.format != outputText {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(alerts) == 0 {
		fmt.Fprintf(p.out, "No active alerts for %s\n", loc.Label())
		return
	}
	for _, a := range alerts {
		fmt.Fprintf(p.out, "Alert for %s: [%s] %s\n", loc.Label(), p.table.Classify(a), a.Event)
	}
}

func (p *consolePresenter) ShowError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = msg
	if !p.quiet {
		fmt.Fprintf(p.out, "Error: %s\n", msg)
	}
}

func (p *consolePresenter) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
