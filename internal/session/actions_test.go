package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/area-weather-forecast/internal/forecast"
	"github.com/i474232898/area-weather-forecast/internal/query"
	"github.com/i474232898/area-weather-forecast/internal/store"
	"github.com/i474232898/area-weather-forecast/internal/weather"
)

var (
	start = civil.Date{Year: 2024, Month: 1, Day: 1}
	end   = civil.Date{Year: 2024, Month: 2, Day: 29}
)

// fakeFetcher builds a synthetic series for whatever location it is asked for.
type fakeFetcher struct {
	err      error
	lastReq  weather.HistoricalRequest
	areaGrid int
}

func (f *fakeFetcher) FetchPoint(_ context.Context, req weather.HistoricalRequest) (weather.HistoricalSeries, error) {
	f.lastReq = req
	if f.err != nil {
		return weather.HistoricalSeries{}, f.err
	}
	var rows []weather.DailyObservation
	for d, i := req.Start, 0; !d.After(req.End); d, i = d.AddDays(1), i+1 {
		values := make(map[weather.Variable]weather.Value)
		for _, v := range req.Variables {
			values[v] = weather.Some(10 + float64(i%7))
		}
		rows = append(rows, weather.DailyObservation{Date: d, Values: values})
	}
	return weather.BuildSeries(req.Location, req.Start, req.End, req.Variables, rows)
}

func (f *fakeFetcher) FetchArea(ctx context.Context, area weather.Area, gridSize int, req weather.HistoricalRequest) (weather.HistoricalSeries, error) {
	f.areaGrid = gridSize
	req.Location = area.Center()
	return f.FetchPoint(ctx, req)
}

type fakeGeocoder struct{}

func (fakeGeocoder) Locate(_ context.Context, city, country string) (weather.Location, error) {
	return weather.Location{Latitude: 48.8566, Longitude: 2.3522, City: city, Country: country}, nil
}

type recordingAnswerer struct {
	digest string
	calls  int
}

func (a *recordingAnswerer) Answer(_ context.Context, question, digest string) (string, error) {
	a.calls++
	a.digest = digest
	return "fallback: " + question, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	fits    []string
	intents []string
}

func (r *fakeRecorder) RecordFit(variable string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		variable += ":error"
	}
	r.fits = append(r.fits, variable)
}

func (r *fakeRecorder) RecordIntent(intent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
}

func pointRequest() FetchRequest {
	return FetchRequest{
		Location: &weather.Location{Latitude: 52.52, Longitude: 13.41},
		Start:    start,
		End:      end,
	}
}

func TestOnFetchStoresSeriesWithDefaultVariables(t *testing.T) {
	f := &fakeFetcher{}
	a := NewActions(f, forecast.NewEngine(forecast.Options{}), Config{})
	st := store.NewSeriesStore()

	series, err := a.OnFetch(context.Background(), st, pointRequest())
	require.NoError(t, err)
	assert.Equal(t, weather.DefaultVariables, f.lastReq.Variables)
	assert.Equal(t, 60, series.Len())

	got, ok := st.Historical()
	require.True(t, ok)
	assert.Equal(t, series.ID, got.ID)
}

func TestOnFetchFailureKeepsPreviousState(t *testing.T) {
	f := &fakeFetcher{}
	a := NewActions(f, forecast.NewEngine(forecast.Options{}), Config{})
	st := store.NewSeriesStore()

	first, err := a.OnFetch(context.Background(), st, pointRequest())
	require.NoError(t, err)
	_, err = a.OnForecast(context.Background(), st, []weather.Variable{weather.MaxTemperature}, 7)
	require.NoError(t, err)

	f.err = weather.ErrFetchFailed
	_, err = a.OnFetch(context.Background(), st, pointRequest())
	assert.ErrorIs(t, err, weather.ErrFetchFailed)

	got, _ := st.Historical()
	assert.Equal(t, first.ID, got.ID)
	assert.Len(t, st.Forecasts(), 1)
}

func TestOnFetchTargets(t *testing.T) {
	area, err := weather.ParseArea([]byte(`{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,2],[0,2],[0,0]]]}`))
	require.NoError(t, err)

	f := &fakeFetcher{}
	a := NewActions(f, forecast.NewEngine(forecast.Options{}), Config{GridSize: 2, Geocoder: fakeGeocoder{}})
	st := store.NewSeriesStore()

	_, err = a.OnFetch(context.Background(), st, FetchRequest{Area: &area, Start: start, End: end})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, f.lastReq.Location.Latitude, 1e-9)
	assert.InDelta(t, 2.0, f.lastReq.Location.Longitude, 1e-9)

	_, err = a.OnFetch(context.Background(), st, FetchRequest{Area: &area, Mode: AreaGrid, Start: start, End: end})
	require.NoError(t, err)
	assert.Equal(t, 2, f.areaGrid)

	series, err := a.OnFetch(context.Background(), st, FetchRequest{City: "Paris", Country: "France", Start: start, End: end})
	require.NoError(t, err)
	assert.Equal(t, "Paris", series.Location.City)

	_, err = a.OnFetch(context.Background(), st, FetchRequest{Start: start, End: end})
	assert.ErrorIs(t, err, weather.ErrInvalidInput)
}

func TestOnFetchCityNeedsGeocoder(t *testing.T) {
	a := NewActions(&fakeFetcher{}, forecast.NewEngine(forecast.Options{}), Config{})
	_, err := a.OnFetch(context.Background(), store.NewSeriesStore(), FetchRequest{City: "Paris", Start: start, End: end})
	assert.ErrorIs(t, err, weather.ErrInvalidInput)
}

func TestOnForecastRequiresHistory(t *testing.T) {
	a := NewActions(&fakeFetcher{}, forecast.NewEngine(forecast.Options{}), Config{})
	_, err := a.OnForecast(context.Background(), store.NewSeriesStore(), []weather.Variable{weather.MaxTemperature}, 7)
	assert.ErrorIs(t, err, weather.ErrPreconditionFailed)
}

func TestOnForecastStoresEveryVariable(t *testing.T) {
	rec := &fakeRecorder{}
	a := NewActions(&fakeFetcher{}, forecast.NewEngine(forecast.Options{}), Config{Recorder: rec})
	st := store.NewSeriesStore()
	_, err := a.OnFetch(context.Background(), st, pointRequest())
	require.NoError(t, err)

	vars := []weather.Variable{weather.PrecipitationTotal, weather.MaxTemperature, weather.PrecipitationTotal}
	out, err := a.OnForecast(context.Background(), st, vars, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)

	stored := st.Forecasts()
	require.Len(t, stored, 2)
	assert.Equal(t, weather.MaxTemperature, stored[0].Variable)
	assert.Len(t, stored[0].Future(), 10)
	assert.ElementsMatch(t, []string{"precipitation_total", "max_temperature"}, rec.fits)
}

func TestOnForecastFailureStoresNothing(t *testing.T) {
	rec := &fakeRecorder{}
	a := NewActions(&fakeFetcher{}, forecast.NewEngine(forecast.Options{}), Config{Recorder: rec})
	st := store.NewSeriesStore()
	_, err := a.OnFetch(context.Background(), st, pointRequest())
	require.NoError(t, err)

	_, err = a.OnForecast(context.Background(), st, []weather.Variable{weather.MaxTemperature, weather.MaxWindSpeed}, 10)
	assert.ErrorIs(t, err, weather.ErrInsufficientData)
	assert.Empty(t, st.Forecasts())
	assert.Contains(t, rec.fits, "max_wind_speed:error")

	_, err = a.OnForecast(context.Background(), st, []weather.Variable{weather.MaxTemperature}, 0)
	assert.ErrorIs(t, err, weather.ErrInvalidInput)
}

func TestOnAskRoutesBeforeFallingBack(t *testing.T) {
	ans := &recordingAnswerer{}
	rec := &fakeRecorder{}
	a := NewActions(&fakeFetcher{}, forecast.NewEngine(forecast.Options{}), Config{Answerer: ans, Recorder: rec})
	st := store.NewSeriesStore()
	_, err := a.OnFetch(context.Background(), st, pointRequest())
	require.NoError(t, err)

	res, err := a.OnAsk(context.Background(), st, "How warm was it?")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Zero(t, ans.calls)

	res, err = a.OnAsk(context.Background(), st, "tell me a joke")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, "fallback: tell me a joke", res.Answer)
	assert.Equal(t, 1, ans.calls)
	assert.Equal(t, query.Summarize(st), ans.digest)
	assert.Equal(t, []string{"temperature", "unmatched"}, rec.intents)
}

type failingAnswerer struct{}

func (failingAnswerer) Answer(context.Context, string, string) (string, error) {
	return "", errors.New("model unavailable")
}

func TestOnAskFallbackError(t *testing.T) {
	a := NewActions(&fakeFetcher{}, forecast.NewEngine(forecast.Options{}), Config{Answerer: failingAnswerer{}})
	_, err := a.OnAsk(context.Background(), store.NewSeriesStore(), "tell me a joke")
	assert.Error(t, err)
}
