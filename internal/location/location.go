// Package location turns a search query or device coordinates into a single
// canonical weather.Location.
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/swelljoe/wthrdash/internal/apperror"
	"github.com/swelljoe/wthrdash/internal/weather"
)

// Geocoder is the part of the weather gateway used for resolution.
type Geocoder interface {
	SearchLocations(ctx context.Context, query string) ([]weather.Location, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (*weather.Location, error)
}

type Resolver struct {
	geocoder Geocoder
}

func NewResolver(g Geocoder) *Resolver {
	return &Resolver{geocoder: g}
}

// ResolveByQuery returns the provider's top-ranked match for text.
func (r *Resolver) ResolveByQuery(ctx context.Context, text string) (*weather.Location, error) {
	candidates, err := r.geocoder.SearchLocations(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apperror.NotFound("location", text)
	}
	loc := candidates[0]
	return &loc, nil
}

// ResolveByCoordinates returns the place at lat, lon.
func (r *Resolver) ResolveByCoordinates(ctx context.Context, lat, lon float64) (*weather.Location, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, apperror.ValidationFailed("coordinates", fmt.Sprintf("coordinates out of range: %.4f, %.4f", lat, lon))
	}
	return r.geocoder.ReverseGeocode(ctx, lat, lon)
}

// ResolveDevice asks the platform for the device position and resolves it.
func (r *Resolver) ResolveDevice(ctx context.Context, locator Locator) (*weather.Location, error) {
	lat, lon, err := locator.CurrentPosition(ctx)
	if err != nil {
		return nil, err
	}
	return r.ResolveByCoordinates(ctx, lat, lon)
}

// PositionErrorCode enumerates the failures of a device position request.
type PositionErrorCode int

const (
	PermissionDenied PositionErrorCode = iota + 1
	PositionUnavailable
	Timeout
)

func (c PositionErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "permission-denied"
	case PositionUnavailable:
		return "position-unavailable"
	case Timeout:
		return "timeout"
	}
	return "unknown"
}

// PositionError is returned by a Locator.
type PositionError struct {
	Code PositionErrorCode
}

func (e *PositionError) Error() string {
	switch e.Code {
	case PermissionDenied:
		return "Location access denied. Please enable location permissions to use this feature."
	case PositionUnavailable:
		return "Location information is unavailable. Please search for a city instead."
	case Timeout:
		return "Location request timed out. Please try again."
	}
	return "Unable to determine your location."
}

// Is lets errors.Is(err, apperror.ErrPermission) match a denied request.
func (e *PositionError) Is(target error) bool {
	return e.Code == PermissionDenied && target == apperror.ErrPermission
}

// Message returns the user-facing text for err, recognising PositionError.
func Message(err error) string {
	var posErr *PositionError
	if errors.As(err, &posErr) {
		return posErr.Error()
	}
	return apperror.UserMessage(err)
}

// Locator is the platform location service.
type Locator interface {
	CurrentPosition(ctx context.Context) (lat, lon float64, err error)
}

// FixedLocator reports a configured position.
type FixedLocator struct {
	Lat, Lon float64
}

func (l FixedLocator) CurrentPosition(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, &PositionError{Code: Timeout}
	}
	return l.Lat, l.Lon, nil
}

// UnavailableLocator stands in when the host has no location service.
type UnavailableLocator struct{}

func (UnavailableLocator) CurrentPosition(context.Context) (float64, float64, error) {
	return 0, 0, &PositionError{Code: PositionUnavailable}
}
