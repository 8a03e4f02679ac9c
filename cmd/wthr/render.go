package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/swelljoe/wthrdash/internal/weather"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func validOutput(format string) error {
	switch format {
	case outputText, outputJSON:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text or json)", format)
}

// renderSnapshot writes snap in the requested format.
func renderSnapshot(w io.Writer, snap *weather.Snapshot, format, units string, table weather.SeverityTable) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	_, err := io.WriteString(w, formatSnapshot(snap, units, table))
	return err
}

func formatSnapshot(snap *weather.Snapshot, units string, table weather.SeverityTable) string {
	var b strings.Builder
	cur := snap.Current
	tz := cur.Timezone

	fmt.Fprintf(&b, "%s\n", snap.Location.Label())
	fmt.Fprintf(&b, "  %s  %s\n",
		weather.FormatTemperature(cur.Temp, units, 1),
		cur.Description,
	)
	fmt.Fprintf(&b, "  Feels like %s  High %s  Low %s\n",
		weather.FormatTemperature(cur.FeelsLike, units, 0),
		weather.FormatTemperature(cur.TempMax, units, 0),
		weather.FormatTemperature(cur.TempMin, units, 0),
	)

	wind := weather.FormatWindSpeed(cur.WindSpeed, units)
	if cur.WindSpeed != nil {
		wind += " " + weather.WindDirection(cur.WindDeg)
	}
	fmt.Fprintf(&b, "  Wind %s  Humidity %d%%  Pressure %d hPa\n", wind, cur.Humidity, cur.Pressure)
	fmt.Fprintf(&b, "  Sunrise %s  Sunset %s\n",
		weather.FormatDateTime(&cur.Sunrise, tz, weather.LayoutTime),
		weather.FormatDateTime(&cur.Sunset, tz, weather.LayoutTime),
	)

	if len(snap.Hourly) > 0 {
		b.WriteString("\nNext hours\n")
		for _, h := range snap.Hourly {
			fmt.Fprintf(&b, "  %-6s %7s  %3d%%  %s\n",
				weather.FormatDateTime(&h.Time, tz, weather.LayoutHour),
				weather.FormatTemperature(&h.Temp, units, 0),
				int(math.Round(h.Pop*100)),
				h.Description,
			)
		}
	}

	if len(snap.Daily) > 0 {
		b.WriteString("\nForecast\n")
		for _, d := range snap.Daily {
			fmt.Fprintf(&b, "  %-3s %7s / %-7s %3d%%  %s\n",
				weather.FormatDateTime(&d.Time, tz, weather.LayoutDay),
				weather.FormatTemperature(&d.TempMax, units, 0),
				weather.FormatTemperature(&d.TempMin, units, 0),
				int(math.Round(d.Pop*100)),
				d.Description,
			)
		}
	}

	if len(snap.Alerts) > 0 {
		b.WriteString("\nAlerts\n")
		for _, a := range snap.Alerts {
			fmt.Fprintf(&b, "  [%s] %s until %s\n",
				strings.ToUpper(string(table.Classify(a))),
				a.Event,
				weather.FormatDateTime(&a.EndsAt, tz, weather.LayoutFull),
			)
		}
	}
	return b.String()
}
