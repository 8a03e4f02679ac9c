package weather

import (
	"strconv"
	"time"
)

// Unit systems understood by the provider.
const (
	UnitsMetric   = "metric"
	UnitsImperial = "imperial"
	UnitsStandard = "standard"
)

// Placeholder is rendered for missing values.
const Placeholder = "--"

// ValidUnits reports whether units is a known unit system.
func ValidUnits(units string) bool {
	switch units {
	case UnitsMetric, UnitsImperial, UnitsStandard:
		return true
	}
	return false
}

func temperatureSuffix(units string) string {
	switch units {
	case UnitsImperial:
		return "°F"
	case UnitsStandard:
		return "K"
	default:
		return "°C"
	}
}

// FormatTemperature renders v with the given number of decimals and the unit
// suffix, e.g. "21.5°C".
func FormatTemperature(v *float64, units string, decimals int) string {
	if v == nil {
		return Placeholder
	}
	if decimals < 0 {
		decimals = 0
	}
	return strconv.FormatFloat(*v, 'f', decimals, 64) + temperatureSuffix(units)
}

// FormatWindSpeed renders a wind speed in the provider's unit for units.
func FormatWindSpeed(v *float64, units string) string {
	if v == nil {
		return Placeholder
	}
	suffix := " m/s"
	if units == UnitsImperial {
		suffix = " mph"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64) + suffix
}

// Common layouts for FormatDateTime.
const (
	LayoutTime    = "15:04"
	LayoutHour    = "3 PM"
	LayoutDay     = "Mon"
	LayoutDayDate = "Mon, Jan 2"
	LayoutFull    = "Mon, Jan 2 15:04"
)

// FormatDateTime renders a unix timestamp in the location's local time.
// tzOffset is seconds east of UTC as reported by the provider.
func FormatDateTime(unix *int64, tzOffset int, layout string) string {
	if unix == nil {
		return Placeholder
	}
	zone := time.FixedZone("", tzOffset)
	return time.Unix(*unix, 0).In(zone).Format(layout)
}

var compassPoints = []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}

// WindDirection converts degrees to a 16-point compass direction.
func WindDirection(deg int) string {
	deg = ((deg % 360) + 360) % 360
	idx := int((float64(deg)+11.25)/22.5) % len(compassPoints)
	return compassPoints[idx]
}

// Float returns a pointer to v, for the formatting helpers.
func Float(v float64) *float64 {
	return &v
}

// Int64 returns a pointer to v, for the formatting helpers.
func Int64(v int64) *int64 {
	return &v
}
