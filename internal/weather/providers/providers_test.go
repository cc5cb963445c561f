package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/area-weather-forecast/internal/weather"
)

func fastConfig(client *http.Client) HTTPClientConfig {
	return HTTPClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}
}

func historicalRequest() weather.HistoricalRequest {
	return weather.HistoricalRequest{
		Location:  weather.Location{Latitude: 52.52, Longitude: 13.41},
		Start:     civil.Date{Year: 2024, Month: 1, Day: 1},
		End:       civil.Date{Year: 2024, Month: 1, Day: 3},
		Variables: []weather.Variable{weather.MaxTemperature, weather.PrecipitationTotal},
	}
}

func TestOpenMeteoFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2024-01-01", q.Get("start_date"))
		assert.Equal(t, "2024-01-03", q.Get("end_date"))
		assert.Equal(t, "temperature_2m_max,precipitation_sum", q.Get("daily"))
		assert.Equal(t, "auto", q.Get("timezone"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"daily":{
			"time":["2024-01-01","2024-01-02","2024-01-03"],
			"temperature_2m_max":[3.5,null,4.1],
			"precipitation_sum":[0,1.2,0.4]
		}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client())
	p.baseURL = srv.URL
	p.httpCfg = fastConfig(srv.Client())

	rows, err := p.FetchDaily(context.Background(), historicalRequest())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, weather.Some(3.5), rows[0].Get(weather.MaxTemperature))
	assert.Equal(t, weather.Missing, rows[1].Get(weather.MaxTemperature))
	assert.Equal(t, weather.Some(1.2), rows[1].Get(weather.PrecipitationTotal))
}

func TestOpenMeteoRejectsRaggedColumns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"daily":{"time":["2024-01-01","2024-01-02"],"temperature_2m_max":[1],"precipitation_sum":[0,0]}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client())
	p.baseURL = srv.URL
	p.httpCfg = fastConfig(srv.Client())

	_, err := p.FetchDaily(context.Background(), historicalRequest())
	assert.ErrorIs(t, err, errMalformed)
}

func TestWeatherAPIFetchDailyChunksLongRanges(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		dt := r.URL.Query().Get("dt")
		_, _ = w.Write([]byte(`{"forecast":{"forecastday":[
			{"date":"` + dt + `","day":{"maxtemp_c":18.5,"totalprecip_mm":2.0}}
		]}}`))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "secret")
	p.baseURL = srv.URL
	p.httpCfg = fastConfig(srv.Client())

	req := historicalRequest()
	req.End = req.Start.AddDays(64)
	req.Variables = append(req.Variables, weather.RainTotal)

	rows, err := p.FetchDaily(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	require.Len(t, rows, 3)
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 31}, rows[1].Date)
	assert.Equal(t, weather.Some(18.5), rows[0].Get(weather.MaxTemperature))
	assert.Equal(t, weather.Missing, rows[0].Get(weather.RainTotal))
}

func TestWeatherAPIRequiresKey(t *testing.T) {
	_, err := NewWeatherAPIProvider(http.DefaultClient, "").FetchDaily(context.Background(), historicalRequest())
	assert.Error(t, err)
}

func TestResilienceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := doRequestWithResilience(context.Background(), fastConfig(srv.Client()), newCircuitBreaker("test"), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.EqualValues(t, 3, calls.Load())
}

func TestResilienceDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := doRequestWithResilience(context.Background(), fastConfig(srv.Client()), newCircuitBreaker("test"), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	assert.ErrorIs(t, err, errUnexpected)
	assert.EqualValues(t, 1, calls.Load())
}

func TestResilienceGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := doRequestWithResilience(context.Background(), fastConfig(srv.Client()), newCircuitBreaker("test"), func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	assert.ErrorIs(t, err, errRateLimited)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGoogleGeocoderLocate(t *testing.T) {
	g := &GoogleGeocoder{lookup: func(a geocoder.Address) (geocoder.Location, error) {
		assert.Equal(t, "Berlin", a.City)
		assert.Equal(t, "Germany", a.Country)
		return geocoder.Location{Latitude: 52.52, Longitude: 13.405}, nil
	}}

	loc, err := g.Locate(context.Background(), " Berlin ", "Germany")
	require.NoError(t, err)
	assert.Equal(t, weather.Location{Latitude: 52.52, Longitude: 13.405, City: "Berlin", Country: "Germany"}, loc)

	_, err = g.Locate(context.Background(), "", "Germany")
	assert.ErrorIs(t, err, weather.ErrInvalidInput)

	failing := &GoogleGeocoder{lookup: func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, errors.New("ZERO_RESULTS")
	}}
	_, err = failing.Locate(context.Background(), "Atlantis", "")
	assert.ErrorIs(t, err, weather.ErrFetchFailed)
}
