package weather

import (
	"math"
	"time"
)

// Location is a resolved place. Name and Country are the display name and
// ISO country code reported by the geocoder.
type Location struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Equal reports whether two locations refer to the same place.
func (l Location) Equal(o Location) bool {
	const eps = 1e-6
	return l.Name == o.Name && l.Country == o.Country &&
		math.Abs(l.Lat-o.Lat) < eps && math.Abs(l.Lon-o.Lon) < eps
}

// Label is the "Name, CC" form shown in headers.
func (l Location) Label() string {
	if l.Country == "" {
		return l.Name
	}
	return l.Name + ", " + l.Country
}

// CurrentConditions holds the latest observation. Pointer fields are nil when
// the provider omitted them.
type CurrentConditions struct {
	Temp        *float64 `json:"temp"`
	FeelsLike   *float64 `json:"feels_like"`
	TempMin     *float64 `json:"temp_min"`
	TempMax     *float64 `json:"temp_max"`
	Humidity    int      `json:"humidity"`
	Pressure    int      `json:"pressure"`
	WindSpeed   *float64 `json:"wind_speed"`
	WindDeg     int      `json:"wind_deg"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Sunrise     int64    `json:"sunrise"`
	Sunset      int64    `json:"sunset"`
	ObservedAt  int64    `json:"observed_at"`
	Timezone    int      `json:"timezone"` // seconds east of UTC
}

type DayForecast struct {
	Time        int64   `json:"time"`
	Sunrise     int64   `json:"sunrise"`
	Sunset      int64   `json:"sunset"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	TempDay     float64 `json:"temp_day"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Pop         float64 `json:"pop"` // probability of precipitation, 0..1
	WindSpeed   float64 `json:"wind_speed"`
}

type HourForecast struct {
	Time        int64   `json:"time"`
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feels_like"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Pop         float64 `json:"pop"`
	WindSpeed   float64 `json:"wind_speed"`
}

// Alert is a government weather alert. StartsAt and EndsAt are unix seconds.
type Alert struct {
	Sender      string   `json:"sender,omitempty"`
	Event       string   `json:"event"`
	Description string   `json:"description"`
	StartsAt    int64    `json:"starts_at"`
	EndsAt      int64    `json:"ends_at"`
	Tags        []string `json:"tags,omitempty"`
}

// Identity is the deduplication key of an alert. Description text is not
// part of it.
type Identity struct {
	Event    string `json:"event"`
	StartsAt int64  `json:"starts_at"`
	EndsAt   int64  `json:"ends_at"`
}

func (a Alert) Identity() Identity {
	return Identity{Event: a.Event, StartsAt: a.StartsAt, EndsAt: a.EndsAt}
}

// Forecast is the result of the combined forecast+alerts endpoint.
type Forecast struct {
	Daily    []DayForecast  `json:"daily"`
	Hourly   []HourForecast `json:"hourly"`
	Alerts   []Alert        `json:"alerts"`
	Timezone int            `json:"timezone"`
}

// Snapshot is the complete weather bundle for one location. A published
// snapshot is never modified; updates replace it.
type Snapshot struct {
	Location  Location          `json:"location"`
	Current   CurrentConditions `json:"current"`
	Daily     []DayForecast     `json:"daily"`
	Hourly    []HourForecast    `json:"hourly"`
	Alerts    []Alert           `json:"alerts"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// WithAlerts returns a copy of s whose alerts are replaced by alerts.
func (s *Snapshot) WithAlerts(alerts []Alert) *Snapshot {
	cp := *s
	cp.Alerts = append([]Alert(nil), alerts...)
	return &cp
}

// RadarFrame is one tile set in the radar manifest.
type RadarFrame struct {
	Time int64  `json:"time"`
	Path string `json:"path"`
}

// RadarManifest lists the available past and nowcast radar frames.
type RadarManifest struct {
	Version   string `json:"version"`
	Generated int64  `json:"generated"`
	Host      string `json:"host"`
	Radar     struct {
		Past    []RadarFrame `json:"past"`
		Nowcast []RadarFrame `json:"nowcast"`
	} `json:"radar"`
}

// Frames returns past frames followed by nowcast frames.
func (m *RadarManifest) Frames() []RadarFrame {
	frames := make([]RadarFrame, 0, len(m.Radar.Past)+len(m.Radar.Nowcast))
	frames = append(frames, m.Radar.Past...)
	return append(frames, m.Radar.Nowcast...)
}
