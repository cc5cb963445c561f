package store

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/area-weather-forecast/internal/weather"
)

var day0 = civil.Date{Year: 2024, Month: time.May, Day: 1}

func history(t *testing.T, days int) weather.HistoricalSeries {
	t.Helper()
	rows := make([]weather.DailyObservation, days)
	for i := range rows {
		rows[i] = weather.DailyObservation{
			Date:   day0.AddDays(i),
			Values: map[weather.Variable]weather.Value{weather.MaxTemperature: weather.Some(float64(10 + i))},
		}
	}
	s, err := weather.BuildSeries(weather.Location{}, day0, day0.AddDays(days-1), []weather.Variable{weather.MaxTemperature}, rows)
	require.NoError(t, err)
	return s
}

func forecastFor(h weather.HistoricalSeries, v weather.Variable, first civil.Date, n int) weather.ForecastSeries {
	points := make([]weather.ForecastPoint, n)
	for i := range points {
		points[i] = weather.ForecastPoint{Date: first.AddDays(i), Predicted: 1, Lower: 0, Upper: 2}
	}
	return weather.ForecastSeries{Variable: v, SourceID: h.ID, Horizon: n, Points: points}
}

func TestSetHistoricalClearsForecasts(t *testing.T) {
	st := NewSeriesStore()
	h := history(t, 5)
	require.NoError(t, st.SetHistorical(h))
	require.NoError(t, st.SetForecast(weather.MaxTemperature, forecastFor(h, weather.MaxTemperature, h.End.AddDays(1), 3)))
	require.Len(t, st.Forecasts(), 1)

	require.NoError(t, st.SetHistorical(history(t, 7)))
	assert.Empty(t, st.Forecasts())
	_, ok := st.Forecast(weather.MaxTemperature)
	assert.False(t, ok)
}

func TestSetHistoricalRejectsInvalidSeries(t *testing.T) {
	st := NewSeriesStore()
	h := history(t, 3)
	require.NoError(t, st.SetHistorical(h))

	err := st.SetHistorical(weather.HistoricalSeries{})
	assert.ErrorIs(t, err, weather.ErrInvalidInput)

	got, ok := st.Historical()
	require.True(t, ok)
	assert.Equal(t, h.ID, got.ID)
}

func TestHistoricalIsIsolatedFromCaller(t *testing.T) {
	st := NewSeriesStore()
	h := history(t, 2)
	require.NoError(t, st.SetHistorical(h))

	h.Observations[0].Values[weather.MaxTemperature] = weather.Some(-100)
	got, _ := st.Historical()
	assert.Equal(t, weather.Some(10), got.Observations[0].Get(weather.MaxTemperature))
}

func TestSetForecastPreconditions(t *testing.T) {
	st := NewSeriesStore()
	h := history(t, 5)

	err := st.SetForecast(weather.MaxTemperature, forecastFor(h, weather.MaxTemperature, h.End.AddDays(1), 3))
	assert.ErrorIs(t, err, weather.ErrPreconditionFailed)

	require.NoError(t, st.SetHistorical(h))

	stale := forecastFor(h, weather.MaxTemperature, h.End.AddDays(1), 3)
	stale.SourceID = uuid.New()
	assert.ErrorIs(t, st.SetForecast(weather.MaxTemperature, stale), weather.ErrPreconditionFailed)

	late := forecastFor(h, weather.MaxTemperature, h.End.AddDays(2), 3)
	assert.ErrorIs(t, st.SetForecast(weather.MaxTemperature, late), weather.ErrPreconditionFailed)

	inSample := forecastFor(h, weather.MaxTemperature, h.Start, 8)
	assert.NoError(t, st.SetForecast(weather.MaxTemperature, inSample))
}

func TestSetForecastValidatesSeries(t *testing.T) {
	st := NewSeriesStore()
	h := history(t, 5)
	require.NoError(t, st.SetHistorical(h))

	fs := forecastFor(h, weather.MaxTemperature, h.End.AddDays(1), 3)
	assert.ErrorIs(t, st.SetForecast(weather.PrecipitationTotal, fs), weather.ErrInvalidInput)

	empty := fs
	empty.Points = nil
	assert.ErrorIs(t, st.SetForecast(weather.MaxTemperature, empty), weather.ErrInvalidInput)

	inverted := forecastFor(h, weather.MaxTemperature, h.End.AddDays(1), 3)
	inverted.Points[1].Lower = 5
	assert.ErrorIs(t, st.SetForecast(weather.MaxTemperature, inverted), weather.ErrInvalidInput)

	unordered := forecastFor(h, weather.MaxTemperature, h.End.AddDays(1), 3)
	unordered.Points[2].Date = unordered.Points[0].Date
	assert.ErrorIs(t, st.SetForecast(weather.MaxTemperature, unordered), weather.ErrInvalidInput)
}

func TestForecastsAreOrderedAndReplaced(t *testing.T) {
	st := NewSeriesStore()
	rows := []weather.DailyObservation{{
		Date: day0,
		Values: map[weather.Variable]weather.Value{
			weather.MaxTemperature:     weather.Some(1),
			weather.PrecipitationTotal: weather.Some(0),
		},
	}}
	h, err := weather.BuildSeries(weather.Location{}, day0, day0, []weather.Variable{weather.PrecipitationTotal, weather.MaxTemperature}, rows)
	require.NoError(t, err)
	require.NoError(t, st.SetHistorical(h))

	require.NoError(t, st.SetForecast(weather.PrecipitationTotal, forecastFor(h, weather.PrecipitationTotal, day0.AddDays(1), 2)))
	require.NoError(t, st.SetForecast(weather.MaxTemperature, forecastFor(h, weather.MaxTemperature, day0.AddDays(1), 2)))
	require.NoError(t, st.SetForecast(weather.MaxTemperature, forecastFor(h, weather.MaxTemperature, day0.AddDays(1), 5)))

	all := st.Forecasts()
	require.Len(t, all, 2)
	assert.Equal(t, weather.MaxTemperature, all[0].Variable)
	assert.Equal(t, 5, all[0].Horizon)
	assert.Equal(t, weather.PrecipitationTotal, all[1].Variable)
}

func TestClear(t *testing.T) {
	st := NewSeriesStore()
	require.NoError(t, st.SetHistorical(history(t, 2)))
	st.Clear()

	_, ok := st.Historical()
	assert.False(t, ok)
	assert.Empty(t, st.Forecasts())
}

func TestSetHistoricalStampsIdentity(t *testing.T) {
	st := NewSeriesStore()
	a := history(t, 3)
	a.ID = uuid.Nil
	require.NoError(t, st.SetHistorical(a))

	current, _ := st.Historical()
	require.NotEqual(t, uuid.Nil, current.ID)
	fromA := forecastFor(current, weather.MaxTemperature, current.End.AddDays(1), 2)
	assert.ErrorIs(t, st.SetForecast(weather.MaxTemperature, forecastFor(a, weather.MaxTemperature, a.End.AddDays(1), 2)), weather.ErrPreconditionFailed)

	b := history(t, 3)
	b.ID = uuid.Nil
	require.NoError(t, st.SetHistorical(b))
	assert.ErrorIs(t, st.SetForecast(weather.MaxTemperature, fromA), weather.ErrPreconditionFailed)

	// Loading a series under the current ID again still invalidates old forecasts.
	replaced, _ := st.Historical()
	fromB := forecastFor(replaced, weather.MaxTemperature, replaced.End.AddDays(1), 2)
	require.NoError(t, st.SetHistorical(replaced))
	assert.ErrorIs(t, st.SetForecast(weather.MaxTemperature, fromB), weather.ErrPreconditionFailed)
}

func TestForecastIsIsolatedFromCaller(t *testing.T) {
	st := NewSeriesStore()
	h := history(t, 3)
	require.NoError(t, st.SetHistorical(h))

	fs := forecastFor(h, weather.MaxTemperature, h.End.AddDays(1), 2)
	require.NoError(t, st.SetForecast(weather.MaxTemperature, fs))
	fs.Points[0].Predicted = 99

	got, ok := st.Forecast(weather.MaxTemperature)
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Points[0].Predicted)

	got.Points[0].Predicted = 42
	all := st.Forecasts()
	assert.Equal(t, 1.0, all[0].Points[0].Predicted)

	hist, _ := st.Historical()
	hist.Observations[0].Values[weather.MaxTemperature] = weather.Some(-1)
	again, _ := st.Historical()
	assert.Equal(t, weather.Some(10), again.Observations[0].Get(weather.MaxTemperature))
}
