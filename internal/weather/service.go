package weather

import "strings"

func transformCurrent(resp *CurrentResponse) *CurrentConditions {
	cc := &CurrentConditions{
		Temp:       resp.Main.Temp,
		FeelsLike:  resp.Main.FeelsLike,
		TempMin:    resp.Main.TempMin,
		TempMax:    resp.Main.TempMax,
		Humidity:   resp.Main.Humidity,
		Pressure:   resp.Main.Pressure,
		WindSpeed:  resp.Wind.Speed,
		WindDeg:    resp.Wind.Deg,
		Sunrise:    resp.Sys.Sunrise,
		Sunset:     resp.Sys.Sunset,
		ObservedAt: resp.Dt,
		Timezone:   resp.Timezone,
	}
	if len(resp.Weather) > 0 {
		cc.Description = resp.Weather[0].Description
		cc.Icon = resp.Weather[0].Icon
	}
	return cc
}

func transformForecast(resp *OneCallResponse, maxDays, maxHourly int) *Forecast {
	fc := &Forecast{
		Daily:    make([]DayForecast, 0, maxDays),
		Hourly:   make([]HourForecast, 0, maxHourly),
		Alerts:   transformAlerts(resp),
		Timezone: resp.TimezoneOffset,
	}

	for i, d := range resp.Daily {
		if i >= maxDays {
			break
		}
		day := DayForecast{
			Time:      d.Dt,
			Sunrise:   d.Sunrise,
			Sunset:    d.Sunset,
			TempMin:   d.Temp.Min,
			TempMax:   d.Temp.Max,
			TempDay:   d.Temp.Day,
			Pop:       d.Pop,
			WindSpeed: d.WindSpeed,
		}
		if len(d.Weather) > 0 {
			day.Description = d.Weather[0].Description
			day.Icon = d.Weather[0].Icon
		}
		fc.Daily = append(fc.Daily, day)
	}

	for i, h := range resp.Hourly {
		if i >= maxHourly {
			break
		}
		hour := HourForecast{
			Time:      h.Dt,
			Temp:      h.Temp,
			FeelsLike: h.FeelsLike,
			Pop:       h.Pop,
			WindSpeed: h.WindSpeed,
		}
		if len(h.Weather) > 0 {
			hour.Description = h.Weather[0].Description
			hour.Icon = h.Weather[0].Icon
		}
		fc.Hourly = append(fc.Hourly, hour)
	}

	return fc
}

func transformAlerts(resp *OneCallResponse) []Alert {
	alerts := make([]Alert, 0, len(resp.Alerts))
	for _, a := range resp.Alerts {
		alerts = append(alerts, Alert{
			Sender:      a.SenderName,
			Event:       a.Event,
			Description: a.Description,
			StartsAt:    a.Start,
			EndsAt:      a.End,
			Tags:        a.Tags,
		})
	}
	return alerts
}

// SymbolForIcon maps an OpenWeather icon code (e.g. "10d") to a Material
// Symbol name.
func SymbolForIcon(code string) string {
	night := strings.HasSuffix(code, "n")
	switch strings.TrimRight(code, "dn") {
	case "01":
		if night {
			return "clear_night"
		}
		return "sunny"
	case "02", "03":
		if night {
			return "partly_cloudy_night"
		}
		return "partly_cloudy_day"
	case "04":
		return "cloud"
	case "09", "10":
		return "rainy"
	case "11":
		return "thunderstorm"
	case "13":
		return "weather_snowy"
	case "50":
		return "foggy"
	}

	return "thermostat"
}
