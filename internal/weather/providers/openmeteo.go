package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/sony/gobreaker"

	"github.com/i474232898/area-weather-forecast/internal/weather"
)

// openMeteoDaily maps our variables to Open-Meteo archive daily fields.
var openMeteoDaily = map[weather.Variable]string{
	weather.MaxTemperature:     "temperature_2m_max",
	weather.MinTemperature:     "temperature_2m_min",
	weather.PrecipitationTotal: "precipitation_sum",
	weather.RainTotal:          "rain_sum",
	weather.MaxWindSpeed:       "wind_speed_10m_max",
}

// OpenMeteoProvider implements weather.HistoricalProvider for the Open-Meteo archive API.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://archive-api.open-meteo.com/v1/archive",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) FetchDaily(ctx context.Context, req weather.HistoricalRequest) ([]weather.DailyObservation, error) {
	fields := make([]string, 0, len(req.Variables))
	for _, v := range req.Variables {
		f, ok := openMeteoDaily[v]
		if !ok {
			return nil, fmt.Errorf("openmeteo does not provide %s", v)
		}
		fields = append(fields, f)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(req.Location.Latitude, 'f', 4, 64))
		values.Set("longitude", strconv.FormatFloat(req.Location.Longitude, 'f', 4, 64))
		values.Set("start_date", req.Start.String())
		values.Set("end_date", req.End.String())
		values.Set("daily", strings.Join(fields, ","))
		values.Set("timezone", "auto")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Daily columns are parallel arrays; nulls mark missing days.
	var payload struct {
		Daily map[string]json.RawMessage `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	var dates []string
	if err := json.Unmarshal(payload.Daily["time"], &dates); err != nil {
		return nil, fmt.Errorf("%w: daily.time: %v", errMalformed, err)
	}

	columns := make(map[weather.Variable][]*float64, len(req.Variables))
	for _, v := range req.Variables {
		raw, ok := payload.Daily[openMeteoDaily[v]]
		if !ok {
			return nil, fmt.Errorf("%w: daily.%s absent", errMalformed, openMeteoDaily[v])
		}
		var col []*float64
		if err := json.Unmarshal(raw, &col); err != nil {
			return nil, fmt.Errorf("%w: daily.%s: %v", errMalformed, openMeteoDaily[v], err)
		}
		if len(col) != len(dates) {
			return nil, fmt.Errorf("%w: daily.%s has %d values for %d dates", errMalformed, openMeteoDaily[v], len(col), len(dates))
		}
		columns[v] = col
	}

	rows := make([]weather.DailyObservation, 0, len(dates))
	for i, ds := range dates {
		d, err := civil.ParseDate(ds)
		if err != nil {
			return nil, fmt.Errorf("%w: date %q: %v", errMalformed, ds, err)
		}
		values := make(map[weather.Variable]weather.Value, len(columns))
		for v, col := range columns {
			if col[i] == nil {
				values[v] = weather.Missing
				continue
			}
			values[v] = weather.Some(*col[i])
		}
		rows = append(rows, weather.DailyObservation{Date: d, Values: values})
	}
	return rows, nil
}
