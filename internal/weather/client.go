package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/swelljoe/wthrdash/internal/apperror"
)

const (
	defaultBaseURL  = "https://api.openweathermap.org"
	defaultAssetURL = "https://openweathermap.org"
	defaultTileURL  = "https://tile.openweathermap.org"
	defaultRadarURL = "https://api.rainviewer.com"

	// maxCandidates is the provider-side limit for direct geocoding.
	maxCandidates = 5
)

// Options configures a Client.
type Options struct {
	APIKey    string
	Units     string // metric, imperial or standard
	Lang      string
	MaxDays   int
	MaxHourly int
}

// Client handles OpenWeather and RainViewer API interactions. It does no
// caching and no retries.
type Client struct {
	APIKey    string
	UserAgent string
	Units     string
	Lang      string
	MaxDays   int
	MaxHourly int

	// Endpoint roots, overridable in tests. Empty means the public default.
	BaseURL  string
	AssetURL string
	TileURL  string
	RadarURL string

	HTTPClient *http.Client
}

// NewClient creates a new provider client. The HTTP client has no timeout of
// its own; callers bound requests through the context.
func NewClient(opts Options) *Client {
	units := opts.Units
	if units == "" {
		units = UnitsMetric
	}
	lang := opts.Lang
	if lang == "" {
		lang = "en"
	}
	maxDays := opts.MaxDays
	if maxDays <= 0 {
		maxDays = 5
	}
	maxHourly := opts.MaxHourly
	if maxHourly <= 0 {
		maxHourly = 24
	}

	return &Client{
		APIKey:     opts.APIKey,
		UserAgent:  "wthrdash/1.0",
		Units:      units,
		Lang:       lang,
		MaxDays:    maxDays,
		MaxHourly:  maxHourly,
		HTTPClient: &http.Client{},
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}

func (c *Client) units() string {
	if c.Units == "" {
		return UnitsMetric
	}
	return c.Units
}

func (c *Client) lang() string {
	if c.Lang == "" {
		return "en"
	}
	return c.Lang
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return nil, apperror.Upstream(resp.StatusCode, text)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	data, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) weatherParams(loc Location) url.Values {
	params := url.Values{}
	params.Set("lat", formatCoord(loc.Lat))
	params.Set("lon", formatCoord(loc.Lon))
	params.Set("appid", c.APIKey)
	params.Set("units", c.units())
	params.Set("lang", c.lang())
	return params
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// CurrentResponse represents the /data/2.5/weather response
type CurrentResponse struct {
	Name    string `json:"name"`
	Dt      int64  `json:"dt"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
		Pressure  int      `json:"pressure"`
		Humidity  int      `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
		Deg   int      `json:"deg"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Timezone int `json:"timezone"`
}

// FetchCurrentConditions fetches the latest observation for loc.
func (c *Client) FetchCurrentConditions(ctx context.Context, loc Location) (*CurrentConditions, error) {
	reqURL := orDefault(c.BaseURL, defaultBaseURL) + "/data/2.5/weather?" + c.weatherParams(loc).Encode()

	var resp CurrentResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	return transformCurrent(&resp), nil
}

// OneCallResponse represents the /data/3.0/onecall response
type OneCallResponse struct {
	TimezoneOffset int `json:"timezone_offset"`
	Daily          []struct {
		Dt      int64 `json:"dt"`
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
		Temp    struct {
			Day float64 `json:"day"`
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Pop       float64 `json:"pop"`
		WindSpeed float64 `json:"wind_speed"`
	} `json:"daily"`
	Hourly []struct {
		Dt        int64   `json:"dt"`
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Weather   []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Pop       float64 `json:"pop"`
		WindSpeed float64 `json:"wind_speed"`
	} `json:"hourly"`
	Alerts []struct {
		SenderName  string   `json:"sender_name"`
		Event       string   `json:"event"`
		Start       int64    `json:"start"`
		End         int64    `json:"end"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	} `json:"alerts"`
}

func (c *Client) oneCall(ctx context.Context, loc Location, exclude string) (*OneCallResponse, error) {
	params := c.weatherParams(loc)
	params.Set("exclude", exclude)
	reqURL := orDefault(c.BaseURL, defaultBaseURL) + "/data/3.0/onecall?" + params.Encode()

	var resp OneCallResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchForecast fetches daily forecast and alerts, plus hourly entries when
// includeHourly is set. The flag only trims the payload.
func (c *Client) FetchForecast(ctx context.Context, loc Location, includeHourly bool) (*Forecast, error) {
	exclude := "minutely,hourly"
	if includeHourly {
		exclude = "minutely"
	}

	resp, err := c.oneCall(ctx, loc, exclude)
	if err != nil {
		return nil, err
	}

	fc := transformForecast(resp, c.maxDays(), c.maxHourly())
	if !includeHourly {
		fc.Hourly = []HourForecast{}
	}
	return fc, nil
}

// FetchAlerts fetches only the active alerts for loc.
func (c *Client) FetchAlerts(ctx context.Context, loc Location) ([]Alert, error) {
	resp, err := c.oneCall(ctx, loc, "current,minutely,hourly,daily")
	if err != nil {
		return nil, err
	}
	return transformAlerts(resp), nil
}

func (c *Client) maxDays() int {
	if c.MaxDays <= 0 {
		return 5
	}
	return c.MaxDays
}

func (c *Client) maxHourly() int {
	if c.MaxHourly <= 0 {
		return 24
	}
	return c.MaxHourly
}

// GeocodeResponse represents the /geo/1.0/direct and /geo/1.0/reverse responses
type GeocodeResponse []struct {
	Name       string            `json:"name"`
	LocalNames map[string]string `json:"local_names"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Country    string            `json:"country"`
	State      string            `json:"state"`
}

func (c *Client) toLocations(resp GeocodeResponse) []Location {
	locs := make([]Location, 0, len(resp))
	for _, r := range resp {
		name := r.Name
		if local, ok := r.LocalNames[c.lang()]; ok && local != "" {
			name = local
		}
		locs = append(locs, Location{
			Name:    name,
			Country: r.Country,
			State:   r.State,
			Lat:     r.Lat,
			Lon:     r.Lon,
		})
	}
	return locs
}

// SearchLocations returns up to five candidates for query in provider order.
func (c *Client) SearchLocations(ctx context.Context, query string) ([]Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("query", "Please enter a location")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(maxCandidates))
	params.Set("appid", c.APIKey)
	reqURL := orDefault(c.BaseURL, defaultBaseURL) + "/geo/1.0/direct?" + params.Encode()

	var resp GeocodeResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	if len(resp) == 0 {
		return nil, apperror.NotFound("location", query)
	}
	if len(resp) > maxCandidates {
		resp = resp[:maxCandidates]
	}
	return c.toLocations(resp), nil
}

// ReverseGeocode fetches the place nearest to the given coordinates.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (*Location, error) {
	params := url.Values{}
	params.Set("lat", formatCoord(lat))
	params.Set("lon", formatCoord(lon))
	params.Set("limit", "1")
	params.Set("appid", c.APIKey)
	reqURL := orDefault(c.BaseURL, defaultBaseURL) + "/geo/1.0/reverse?" + params.Encode()

	var resp GeocodeResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	if len(resp) == 0 {
		return nil, apperror.NotFound("location", fmt.Sprintf("%s,%s", formatCoord(lat), formatCoord(lon)))
	}
	loc := c.toLocations(resp[:1])[0]
	return &loc, nil
}

// IconURL builds the condition icon URL. size is the 1x..4x multiplier.
func (c *Client) IconURL(code string, size int) string {
	base := orDefault(c.AssetURL, defaultAssetURL) + "/img/wn/" + url.PathEscape(code)
	if size <= 1 {
		return base + ".png"
	}
	if size > 4 {
		size = 4
	}
	return fmt.Sprintf("%s@%dx.png", base, size)
}

// Map layers served by the tile endpoint.
const (
	LayerClouds        = "clouds_new"
	LayerPrecipitation = "precipitation_new"
	LayerPressure      = "pressure_new"
	LayerWind          = "wind_new"
	LayerTemperature   = "temp_new"
)

// MapTileURL builds a weather overlay tile URL.
func (c *Client) MapTileURL(layer string, zoom, x, y int) string {
	return fmt.Sprintf("%s/map/%s/%d/%d/%d.png?appid=%s",
		orDefault(c.TileURL, defaultTileURL), url.PathEscape(layer), zoom, x, y, url.QueryEscape(c.APIKey))
}

// ValidLayer reports whether layer is one of the overlay layers above.
func ValidLayer(layer string) bool {
	switch layer {
	case LayerClouds, LayerPrecipitation, LayerPressure, LayerWind, LayerTemperature:
		return true
	}
	return false
}

// FetchMapTile downloads one overlay tile so it can be proxied without
// handing the API key to the browser.
func (c *Client) FetchMapTile(ctx context.Context, layer string, zoom, x, y int) ([]byte, error) {
	if !ValidLayer(layer) {
		return nil, apperror.ValidationFailed("layer", fmt.Sprintf("unknown map layer %q", layer))
	}
	return c.get(ctx, c.MapTileURL(layer, zoom, x, y))
}

// FetchRadarManifest fetches the list of available radar frames.
func (c *Client) FetchRadarManifest(ctx context.Context) (*RadarManifest, error) {
	reqURL := orDefault(c.RadarURL, defaultRadarURL) + "/public/weather-maps.json"

	var m RadarManifest
	if err := c.getJSON(ctx, reqURL, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// RadarFrameURL builds the tile URL of frame index in m. It returns false when
// index is out of range.
func RadarFrameURL(m *RadarManifest, index, zoom, x, y int) (string, bool) {
	if m == nil {
		return "", false
	}
	frames := m.Frames()
	if index < 0 || index >= len(frames) {
		return "", false
	}
	return fmt.Sprintf("%s%s/256/%d/%d/%d/2/1_1.png", m.Host, frames[index].Path, zoom, x, y), true
}
