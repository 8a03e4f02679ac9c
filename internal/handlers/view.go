package handlers

import (
	"fmt"
	"math"

	"github.com/swelljoe/wthrdash/internal/weather"
)

// IconSource builds condition icon URLs.
type IconSource interface {
	IconURL(code string, size int) string
}

type CurrentView struct {
	Temperature string `json:"temperature"`
	FeelsLike   string `json:"feels_like"`
	High        string `json:"high"`
	Low         string `json:"low"`
	Humidity    string `json:"humidity"`
	Pressure    string `json:"pressure"`
	Wind        string `json:"wind"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
	Symbol      string `json:"symbol"`
	Sunrise     string `json:"sunrise"`
	Sunset      string `json:"sunset"`
	Observed    string `json:"observed"`
}

type DayView struct {
	Day         string `json:"day"`
	Date        string `json:"date"`
	High        string `json:"high"`
	Low         string `json:"low"`
	Description string `json:"description"`
	Precip      string `json:"precip"`
	IconURL     string `json:"icon_url"`
	Symbol      string `json:"symbol"`
}

type HourView struct {
	Time        string `json:"time"`
	Temperature string `json:"temperature"`
	Description string `json:"description"`
	Precip      string `json:"precip"`
	IconURL     string `json:"icon_url"`
	Symbol      string `json:"symbol"`
}

type AlertView struct {
	Event       string `json:"event"`
	Sender      string `json:"sender,omitempty"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Starts      string `json:"starts"`
	Ends        string `json:"ends"`
}

// WeatherView is the formatted dashboard as served to the UI.
type WeatherView struct {
	State         string       `json:"state"`
	Loading       bool         `json:"loading"`
	Location      string       `json:"location,omitempty"`
	Current       *CurrentView `json:"current,omitempty"`
	Daily         []DayView    `json:"daily"`
	Hourly        []HourView   `json:"hourly"`
	Alerts        []AlertView  `json:"alerts"`
	Error         string       `json:"error,omitempty"`
	AlertsEnabled bool         `json:"alerts_enabled"`
	Theme         string       `json:"theme"`
	Units         string       `json:"units"`
}

func percent(p float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(p*100)))
}

// buildView formats st for display. The temperature suffix follows units.
func buildView(st BoardState, units string, icons IconSource, table weather.SeverityTable) WeatherView {
	v := WeatherView{
		Loading: st.Loading,
		Error:   st.Error,
		Units:   units,
		Daily:   []DayView{},
		Hourly:  []HourView{},
		Alerts:  []AlertView{},
	}
	if st.Location != nil {
		v.Location = st.Location.Label()
	}

	snap := st.Snapshot
	if snap == nil {
		return v
	}
	if v.Location == "" {
		v.Location = snap.Location.Label()
	}

	cur := snap.Current
	tz := cur.Timezone
	wind := weather.FormatWindSpeed(cur.WindSpeed, units)
	if cur.WindSpeed != nil {
		wind += " " + weather.WindDirection(cur.WindDeg)
	}
	v.Current = &CurrentView{
		Temperature: weather.FormatTemperature(cur.Temp, units, 0),
		FeelsLike:   weather.FormatTemperature(cur.FeelsLike, units, 0),
		High:        weather.FormatTemperature(cur.TempMax, units, 0),
		Low:         weather.FormatTemperature(cur.TempMin, units, 0),
		Humidity:    fmt.Sprintf("%d%%", cur.Humidity),
		Pressure:    fmt.Sprintf("%d hPa", cur.Pressure),
		Wind:        wind,
		Description: cur.Description,
		IconURL:     icons.IconURL(cur.Icon, 2),
		Symbol:      weather.SymbolForIcon(cur.Icon),
		Sunrise:     weather.FormatDateTime(&cur.Sunrise, tz, weather.LayoutTime),
		Sunset:      weather.FormatDateTime(&cur.Sunset, tz, weather.LayoutTime),
		Observed:    weather.FormatDateTime(&cur.ObservedAt, tz, weather.LayoutFull),
	}

	for _, d := range snap.Daily {
		v.Daily = append(v.Daily, DayView{
			Day:         weather.FormatDateTime(&d.Time, tz, weather.LayoutDay),
			Date:        weather.FormatDateTime(&d.Time, tz, weather.LayoutDayDate),
			High:        weather.FormatTemperature(&d.TempMax, units, 0),
			Low:         weather.FormatTemperature(&d.TempMin, units, 0),
			Description: d.Description,
			Precip:      percent(d.Pop),
			IconURL:     icons.IconURL(d.Icon, 1),
			Symbol:      weather.SymbolForIcon(d.Icon),
		})
	}
	for _, h := range snap.Hourly {
		v.Hourly = append(v.Hourly, HourView{
			Time:        weather.FormatDateTime(&h.Time, tz, weather.LayoutHour),
			Temperature: weather.FormatTemperature(&h.Temp, units, 0),
			Description: h.Description,
			Precip:      percent(h.Pop),
			IconURL:     icons.IconURL(h.Icon, 1),
			Symbol:      weather.SymbolForIcon(h.Icon),
		})
	}
	for _, a := range snap.Alerts {
		v.Alerts = append(v.Alerts, AlertView{
			Event:       a.Event,
			Sender:      a.Sender,
			Description: a.Description,
			Severity:    string(table.Classify(a)),
			Starts:      weather.FormatDateTime(&a.StartsAt, tz, weather.LayoutFull),
			Ends:        weather.FormatDateTime(&a.EndsAt, tz, weather.LayoutFull),
		})
	}
	return v
}
