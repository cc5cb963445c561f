package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"cloud.google.com/go/civil"
	"github.com/sony/gobreaker"

	"github.com/i474232898/area-weather-forecast/internal/weather"
)

// weatherAPIMaxSpan is the longest dt..end_dt window the history endpoint accepts.
const weatherAPIMaxSpan = 30

// WeatherAPIProvider implements weather.HistoricalProvider for the WeatherAPI.com history endpoint.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/history.json",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) FetchDaily(ctx context.Context, req weather.HistoricalRequest) ([]weather.DailyObservation, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi api key is not configured")
	}

	var rows []weather.DailyObservation
	for from := req.Start; !from.After(req.End); from = from.AddDays(weatherAPIMaxSpan) {
		to := from.AddDays(weatherAPIMaxSpan - 1)
		if to.After(req.End) {
			to = req.End
		}
		chunk, err := p.fetchWindow(ctx, req, from, to)
		if err != nil {
			return nil, err
		}
		rows = append(rows, chunk...)
	}
	return rows, nil
}

func (p *WeatherAPIProvider) fetchWindow(ctx context.Context, req weather.HistoricalRequest, from, to civil.Date) ([]weather.DailyObservation, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location; it accepts "lat,lon".
		values.Set("q", fmt.Sprintf("%f,%f", req.Location.Latitude, req.Location.Longitude))
		values.Set("dt", from.String())
		values.Set("end_dt", to.String())

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Forecast struct {
			ForecastDay []struct {
				Date string `json:"date"`
				Day  struct {
					MaxTempC      *float64 `json:"maxtemp_c"`
					MinTempC      *float64 `json:"mintemp_c"`
					TotalPrecipMm *float64 `json:"totalprecip_mm"`
					MaxWindKph    *float64 `json:"maxwind_kph"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	rows := make([]weather.DailyObservation, 0, len(payload.Forecast.ForecastDay))
	for _, fd := range payload.Forecast.ForecastDay {
		d, err := civil.ParseDate(fd.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date %q: %v", errMalformed, fd.Date, err)
		}
		values := make(map[weather.Variable]weather.Value, len(req.Variables))
		for _, v := range req.Variables {
			switch v {
			case weather.MaxTemperature:
				values[v] = optional(fd.Day.MaxTempC)
			case weather.MinTemperature:
				values[v] = optional(fd.Day.MinTempC)
			case weather.PrecipitationTotal:
				values[v] = optional(fd.Day.TotalPrecipMm)
			case weather.MaxWindSpeed:
				values[v] = optional(fd.Day.MaxWindKph)
			default:
				// No separate rain total in the history payload.
				values[v] = weather.Missing
			}
		}
		rows = append(rows, weather.DailyObservation{Date: d, Values: values})
	}
	return rows, nil
}

func optional(f *float64) weather.Value {
	if f == nil {
		return weather.Missing
	}
	return weather.Some(*f)
}
