package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/i474232898/area-weather-forecast/internal/weather"
)

// SeriesStore holds at most one HistoricalSeries and one ForecastSeries per
// variable for a single session. Forecasts never outlive the history they
// were derived from.
type SeriesStore struct {
	mu sync.RWMutex

	historical *weather.HistoricalSeries
	forecasts  map[weather.Variable]weather.ForecastSeries
}

// NewSeriesStore creates an empty store.
func NewSeriesStore() *SeriesStore {
	return &SeriesStore{
		forecasts: make(map[weather.Variable]weather.ForecastSeries),
	}
}

// SetHistorical replaces the historical series and clears every forecast.
// A series without an ID, or reusing the current one, is stored under a
// fresh ID; read it back with Historical.
func (s *SeriesStore) SetHistorical(series weather.HistoricalSeries) error {
	if err := series.Validate(); err != nil {
		return err
	}
	cp := series.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cp.ID == uuid.Nil || (s.historical != nil && s.historical.ID == cp.ID) {
		cp.ID = uuid.New()
	}
	s.historical = &cp
	s.forecasts = make(map[weather.Variable]weather.ForecastSeries)
	return nil
}

// Historical returns a copy of the current series, if any.
func (s *SeriesStore) Historical() (weather.HistoricalSeries, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.historical == nil {
		return weather.HistoricalSeries{}, false
	}
	return s.historical.Clone(), true
}

// SetForecast stores series for variable. It must derive from the loaded
// historical series and start no later than the day after its end.
func (s *SeriesStore) SetForecast(variable weather.Variable, series weather.ForecastSeries) error {
	if series.Variable != variable {
		return fmt.Errorf("%w: forecast for %s stored as %s", weather.ErrInvalidInput, series.Variable, variable)
	}
	if len(series.Points) == 0 {
		return fmt.Errorf("%w: empty forecast series", weather.ErrInvalidInput)
	}
	for i, p := range series.Points {
		if p.Lower > p.Predicted || p.Predicted > p.Upper {
			return fmt.Errorf("%w: bounds out of order on %s", weather.ErrInvalidInput, p.Date)
		}
		if i > 0 && !p.Date.After(series.Points[i-1].Date) {
			return fmt.Errorf("%w: forecast dates not ascending at %s", weather.ErrInvalidInput, p.Date)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.historical == nil {
		return fmt.Errorf("%w: no historical series loaded", weather.ErrPreconditionFailed)
	}
	if series.SourceID != s.historical.ID {
		return fmt.Errorf("%w: forecast derived from a stale historical series", weather.ErrPreconditionFailed)
	}
	if series.Points[0].Date.After(s.historical.End.AddDays(1)) {
		return fmt.Errorf("%w: forecast starts %s, after %s", weather.ErrPreconditionFailed, series.Points[0].Date, s.historical.End.AddDays(1))
	}

	s.forecasts[variable] = series.Clone()
	return nil
}

// Forecast returns the forecast for variable, if any.
func (s *SeriesStore) Forecast(variable weather.Variable) (weather.ForecastSeries, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fs, ok := s.forecasts[variable]
	if !ok {
		return weather.ForecastSeries{}, false
	}
	return fs.Clone(), true
}

// Forecasts returns all stored forecasts in weather.AllVariables order.
func (s *SeriesStore) Forecasts() []weather.ForecastSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.ForecastSeries, 0, len(s.forecasts))
	for _, fs := range s.forecasts {
		out = append(out, fs.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return variableRank(out[i].Variable) < variableRank(out[j].Variable)
	})
	return out
}

// Clear removes all stored series.
func (s *SeriesStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.historical = nil
	s.forecasts = make(map[weather.Variable]weather.ForecastSeries)
}

func variableRank(v weather.Variable) int {
	for i, known := range weather.AllVariables {
		if known == v {
			return i
		}
	}
	return len(weather.AllVariables)
}
