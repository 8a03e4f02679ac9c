package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/swelljoe/wthrdash/internal/apperror"
	"github.com/swelljoe/wthrdash/internal/db"
	"github.com/swelljoe/wthrdash/internal/location"
	"github.com/swelljoe/wthrdash/internal/middleware"
	"github.com/swelljoe/wthrdash/internal/scheduler"
	"github.com/swelljoe/wthrdash/internal/weather"
)

//go:embed templates/*.html static/*
var assets embed.FS

// Database defines the interface for database operations needed by handlers
type Database interface {
	Ping() error
	Theme() (db.Theme, error)
	SetTheme(t db.Theme) error
	ToggleTheme() (db.Theme, error)
}

// Dashboard is the scheduler as seen by the HTTP surface.
type Dashboard interface {
	SetLocation(ctx context.Context, loc weather.Location) error
	Refresh(ctx context.Context) error
	EnableAlerts()
	DisableAlerts()
	AlertsEnabled() bool
	State() scheduler.State
}

type Resolver interface {
	ResolveByQuery(ctx context.Context, text string) (*weather.Location, error)
	ResolveByCoordinates(ctx context.Context, lat, lon float64) (*weather.Location, error)
	ResolveDevice(ctx context.Context, locator location.Locator) (*weather.Location, error)
}

// Provider is the part of the weather client used directly by handlers.
type Provider interface {
	IconSource
	SearchLocations(ctx context.Context, query string) ([]weather.Location, error)
	FetchRadarManifest(ctx context.Context) (*weather.RadarManifest, error)
	FetchMapTile(ctx context.Context, layer string, zoom, x, y int) ([]byte, error)
}

type Deps struct {
	DB        Database
	Dashboard Dashboard
	Resolver  Resolver
	Provider  Provider
	Board     *Board
	Locator   location.Locator
	Severity  weather.SeverityTable
	Units     string
	Logger    *slog.Logger
}

// Handlers holds dependencies for HTTP handlers
type Handlers struct {
	db        Database
	dash      Dashboard
	resolver  Resolver
	provider  Provider
	board     *Board
	locator   location.Locator
	severity  weather.SeverityTable
	units     string
	logger    *slog.Logger
	templates *template.Template
}

// New creates a new Handlers instance
func New(deps Deps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Locator == nil {
		deps.Locator = location.UnavailableLocator{}
	}
	if deps.Severity == nil {
		deps.Severity = weather.DefaultSeverityTable
	}
	if deps.Units == "" {
		deps.Units = weather.UnitsMetric
	}

	tmpl, err := template.ParseFS(assets, "templates/*.html")
	if err != nil {
		deps.Logger.Warn("failed to parse templates", slog.String("error", err.Error()))
	}

	return &Handlers{
		db:        deps.DB,
		dash:      deps.Dashboard,
		resolver:  deps.Resolver,
		provider:  deps.Provider,
		board:     deps.Board,
		locator:   deps.Locator,
		severity:  deps.Severity,
		units:     deps.Units,
		logger:    deps.Logger,
		templates: tmpl,
	}
}

// Routes builds the router with the global middleware stack.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(h.logger))

	static, _ := fs.Sub(assets, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/", h.HandleIndex)
	r.Get("/health", h.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/weather", h.HandleWeather)
		r.Post("/refresh", h.HandleRefresh)
		r.Post("/location", h.HandleLocation)
		r.Post("/location/device", h.HandleDeviceLocation)
		r.Get("/search", h.HandleSearch)
		r.Post("/alerts/{action}", h.HandleAlerts)
		r.Get("/notifications", h.HandleNotifications)
		r.Delete("/notifications/{id}", h.HandleDismiss)
		r.Get("/theme", h.HandleTheme)
		r.Post("/theme", h.HandleSetTheme)
		r.Get("/radar", h.HandleRadar)
		r.Get("/tiles/{layer}/{z}/{x}/{y}", h.HandleTile)
	})

	return r
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("response write error", slog.String("error", err.Error()))
	}
}

func statusFor(err error) int {
	var posErr *location.PositionError
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway
	case errors.As(err, &posErr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("error", err.Error()))
	}
	h.writeJSON(w, status, map[string]string{"error": location.Message(err)})
}

func (h *Handlers) theme() string {
	if h.db == nil {
		return string(db.ThemeLight)
	}
	t, err := h.db.Theme()
	if err != nil {
		h.logger.Warn("failed to read theme", slog.String("error", err.Error()))
	}
	return string(t)
}

func (h *Handlers) view() WeatherView {
	v := buildView(h.board.State(), h.units, h.provider, h.severity)
	v.State = h.dash.State().String()
	v.AlertsEnabled = h.dash.AlertsEnabled()
	v.Theme = h.theme()
	return v
}

// HandleIndex handles the main page
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if h.templates == nil {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
	<title>wthr</title>
</head>
<body>
	<h1>wthr</h1>
	<p>Weather dashboard - templates not loaded</p>
</body>
</html>`))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "index.html", h.view()); err != nil {
		h.logger.Error("error executing template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleHealth handles health check endpoint
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			status = "degraded"
		}
	} else {
		status = "no_database"
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": status,
		"state":  h.dash.State().String(),
	})
}

// HandleWeather returns the dashboard as JSON, or as an HTML fragment when
// format=html.
func (h *Handlers) HandleWeather(w http.ResponseWriter, r *http.Request) {
	v := h.view()
	if r.URL.Query().Get("format") != "html" {
		h.writeJSON(w, http.StatusOK, v)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if h.templates == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := h.templates.ExecuteTemplate(w, "weather_fragment", v); err != nil {
		h.logger.Error("template error", slog.String("error", err.Error()))
	}
}

func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.dash.Refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.view())
}

func parseCoord(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, apperror.ValidationFailed(field, "Invalid "+field)
	}
	return v, nil
}

// HandleLocation resolves q, or lat and lon, and makes it the active
// location.
func (h *Handlers) HandleLocation(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.FormValue("q"))
	latStr, lonStr := r.FormValue("lat"), r.FormValue("lon")

	var (
		loc *weather.Location
		err error
	)
	switch {
	case q != "":
		loc, err = h.resolver.ResolveByQuery(r.Context(), q)
	case latStr != "" && lonStr != "":
		var lat, lon float64
		if lat, err = parseCoord("latitude", latStr); err != nil {
			break
		}
		if lon, err = parseCoord("longitude", lonStr); err != nil {
			break
		}
		loc, err = h.resolver.ResolveByCoordinates(r.Context(), lat, lon)
	default:
		err = apperror.ValidationFailed("q", "Please provide a location")
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.setLocation(w, r, *loc)
}

// HandleDeviceLocation uses the device position.
func (h *Handlers) HandleDeviceLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.resolver.ResolveDevice(r.Context(), h.locator)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.setLocation(w, r, *loc)
}

func (h *Handlers) setLocation(w http.ResponseWriter, r *http.Request, loc weather.Location) {
	if err := h.dash.SetLocation(r.Context(), loc); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.view())
}

// HandleSearch performs location autocomplete
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < 2 {
		h.writeJSON(w, http.StatusOK, []weather.Location{})
		return
	}

	places, err := h.provider.SearchLocations(r.Context(), q)
	if errors.Is(err, apperror.ErrNotFound) {
		places, err = []weather.Location{}, nil
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, places)
}

func (h *Handlers) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "enable":
		h.dash.EnableAlerts()
	case "disable":
		h.dash.DisableAlerts()
	default:
		h.writeError(w, apperror.ValidationFailed("action", "action must be enable or disable"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"alerts_enabled": h.dash.AlertsEnabled(),
		"permission":     h.board.Permission(),
	})
}

func (h *Handlers) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.board.Notifications())
}

func (h *Handlers) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, apperror.ValidationFailed("id", "Invalid notification id"))
		return
	}
	if !h.board.Dismiss(id) {
		h.writeError(w, apperror.NotFound("notification", strconv.Itoa(id)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleTheme(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"theme": h.theme()})
}

// HandleSetTheme accepts theme=light, dark or toggle.
func (h *Handlers) HandleSetTheme(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.writeError(w, errors.New("database not initialized"))
		return
	}

	var (
		t   db.Theme
		err error
	)
	if value := r.FormValue("theme"); value == "toggle" {
		t, err = h.db.ToggleTheme()
	} else if t, err = db.ParseTheme(value); err == nil {
		err = h.db.SetTheme(t)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"theme": string(t)})
}

type radarFrameView struct {
	Time int64  `json:"time"`
	URL  string `json:"url"`
}

// HandleRadar lists radar frame tile URLs for tile z/x/y (default 3/4/2).
func (h *Handlers) HandleRadar(w http.ResponseWriter, r *http.Request) {
	z, x, y := queryInt(r, "z", 3), queryInt(r, "x", 4), queryInt(r, "y", 2)

	m, err := h.provider.FetchRadarManifest(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	frames := m.Frames()
	out := make([]radarFrameView, 0, len(frames))
	for i, f := range frames {
		u, ok := weather.RadarFrameURL(m, i, z, x, y)
		if !ok {
			continue
		}
		out = append(out, radarFrameView{Time: f.Time, URL: u})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"generated": m.Generated,
		"frames":    out,
	})
}

// HandleTile proxies a map overlay tile.
func (h *Handlers) HandleTile(w http.ResponseWriter, r *http.Request) {
	var coords [3]int
	for i, name := range []string{"z", "x", "y"} {
		v, err := strconv.Atoi(strings.TrimSuffix(chi.URLParam(r, name), ".png"))
		if err != nil || v < 0 {
			h.writeError(w, apperror.ValidationFailed(name, "Invalid tile coordinate"))
			return
		}
		coords[i] = v
	}

	tile, err := h.provider.FetchMapTile(r.Context(), chi.URLParam(r, "layer"), coords[0], coords[1], coords[2])
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=600")
	w.Write(tile)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
