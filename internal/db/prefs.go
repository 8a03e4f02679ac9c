package db

import (
	"fmt"

	"github.com/swelljoe/wthrdash/internal/apperror"
	"github.com/swelljoe/wthrdash/internal/weather"
)

// Keys consumed by the dashboard. The prefix is added by DB.
const (
	KeyLastLocation   = "lastLocation"
	KeyTheme          = "theme"
	KeyNotifiedAlerts = "notifiedAlerts"
	KeyUsers          = "users"
	KeyActiveUser     = "activeUserId"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	}
	return "", apperror.ValidationFailed("theme", fmt.Sprintf("unknown theme %q", s))
}

// LastLocation returns the last viewed location, or nil if none was saved.
func (d *DB) LastLocation() (*weather.Location, error) {
	var loc weather.Location
	ok, err := d.Get(KeyLastLocation, &loc)
	if err != nil || !ok {
		return nil, err
	}
	return &loc, nil
}

// SaveLocation records loc as the last viewed location.
func (d *DB) SaveLocation(loc weather.Location) error {
	return d.Set(KeyLastLocation, loc)
}

// Theme returns the stored theme, light when unset.
func (d *DB) Theme() (Theme, error) {
	var t Theme
	ok, err := d.Get(KeyTheme, &t)
	if err != nil {
		return ThemeLight, err
	}
	if !ok {
		return ThemeLight, nil
	}
	if _, err := ParseTheme(string(t)); err != nil {
		return ThemeLight, nil
	}
	return t, nil
}

func (d *DB) SetTheme(t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}
	return d.Set(KeyTheme, t)
}

// ToggleTheme flips between light and dark and returns the new theme.
func (d *DB) ToggleTheme() (Theme, error) {
	current, err := d.Theme()
	if err != nil {
		return current, err
	}
	next := ThemeDark
	if current == ThemeDark {
		next = ThemeLight
	}
	return next, d.SetTheme(next)
}

// NotifiedAlerts returns the identities of alerts already notified.
func (d *DB) NotifiedAlerts() ([]weather.Identity, error) {
	var ids []weather.Identity
	if _, err := d.Get(KeyNotifiedAlerts, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (d *DB) SaveNotifiedAlerts(ids []weather.Identity) error {
	if ids == nil {
		ids = []weather.Identity{}
	}
	return d.Set(KeyNotifiedAlerts, ids)
}

// ActiveUserID returns the logged in user id, or "" when nobody is.
func (d *DB) ActiveUserID() (string, error) {
	var id string
	if _, err := d.Get(KeyActiveUser, &id); err != nil {
		return "", err
	}
	return id, nil
}

func (d *DB) SetActiveUserID(id string) error {
	return d.Set(KeyActiveUser, id)
}

func (d *DB) ClearActiveUser() error {
	return d.Remove(KeyActiveUser)
}
