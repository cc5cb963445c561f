// Package session implements the user actions (fetch, forecast, ask) against
// an explicitly passed per-session store.
package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/civil"

	"github.com/i474232898/area-weather-forecast/internal/query"
	"github.com/i474232898/area-weather-forecast/internal/store"
	"github.com/i474232898/area-weather-forecast/internal/weather"
)

// Fetcher retrieves historical series (weather.Service).
type Fetcher interface {
	FetchPoint(ctx context.Context, req weather.HistoricalRequest) (weather.HistoricalSeries, error)
	FetchArea(ctx context.Context, area weather.Area, gridSize int, req weather.HistoricalRequest) (weather.HistoricalSeries, error)
}

// Forecaster fits forecast series (forecast.Engine).
type Forecaster interface {
	ForecastAll(ctx context.Context, series weather.HistoricalSeries, variables []weather.Variable, horizonDays int) ([]weather.ForecastSeries, error)
}

// Geocoder resolves a place name to coordinates.
type Geocoder interface {
	Locate(ctx context.Context, city, country string) (weather.Location, error)
}

// Recorder observes action outcomes.
type Recorder interface {
	RecordFit(variable string, d time.Duration, err error)
	RecordIntent(intent string)
}

// AreaMode selects how a drawn area becomes a series.
type AreaMode string

const (
	// AreaCentroid fetches the polygon centroid only.
	AreaCentroid AreaMode = "centroid"
	// AreaGrid averages a grid of points over the bounding box.
	AreaGrid AreaMode = "grid"
)

// FetchRequest is the "fetch historical data" action. Exactly one of
// Location, Area or City must be set.
type FetchRequest struct {
	Location  *weather.Location
	Area      *weather.Area
	Mode      AreaMode
	City      string
	Country   string
	Start     civil.Date
	End       civil.Date
	Variables []weather.Variable
}

// Config holds the optional collaborators of Actions.
type Config struct {
	// Geocoder enables city/country fetches.
	Geocoder Geocoder
	// Answerer handles unmatched questions; defaults to query.DigestAnswerer.
	Answerer query.Answerer
	Recorder Recorder
	// GridSize is n for the n x n area grid (default 3).
	GridSize int
}

// Actions bundles the collaborators used by the action handlers.
type Actions struct {
	fetcher    Fetcher
	forecaster Forecaster
	geocoder   Geocoder
	answerer   query.Answerer
	recorder   Recorder
	gridSize   int
}

// NewActions creates the action handlers.
func NewActions(fetcher Fetcher, forecaster Forecaster, cfg Config) *Actions {
	if cfg.Answerer == nil {
		cfg.Answerer = query.DigestAnswerer{}
	}
	if cfg.GridSize <= 0 {
		cfg.GridSize = 3
	}
	return &Actions{
		fetcher:    fetcher,
		forecaster: forecaster,
		geocoder:   cfg.Geocoder,
		answerer:   cfg.Answerer,
		recorder:   cfg.Recorder,
		gridSize:   cfg.GridSize,
	}
}

// OnFetch loads a new historical series into st. On failure st is left
// untouched; on success every previous forecast is dropped with the old series.
func (a *Actions) OnFetch(ctx context.Context, st *store.SeriesStore, req FetchRequest) (weather.HistoricalSeries, error) {
	hreq := weather.HistoricalRequest{
		Start:     req.Start,
		End:       req.End,
		Variables: req.Variables,
	}
	if len(hreq.Variables) == 0 {
		hreq.Variables = weather.DefaultVariables
	}

	var (
		series weather.HistoricalSeries
		err    error
	)
	switch {
	case req.Area != nil && req.Mode == AreaGrid:
		series, err = a.fetcher.FetchArea(ctx, *req.Area, a.gridSize, hreq)
	case req.Area != nil:
		loc, cerr := req.Area.Centroid()
		if cerr != nil {
			return weather.HistoricalSeries{}, cerr
		}
		hreq.Location = loc
		series, err = a.fetcher.FetchPoint(ctx, hreq)
	case req.Location != nil:
		hreq.Location = *req.Location
		series, err = a.fetcher.FetchPoint(ctx, hreq)
	case req.City != "":
		if a.geocoder == nil {
			return weather.HistoricalSeries{}, fmt.Errorf("%w: geocoding is not configured", weather.ErrInvalidInput)
		}
		loc, gerr := a.geocoder.Locate(ctx, req.City, req.Country)
		if gerr != nil {
			return weather.HistoricalSeries{}, gerr
		}
		hreq.Location = loc
		series, err = a.fetcher.FetchPoint(ctx, hreq)
	default:
		return weather.HistoricalSeries{}, fmt.Errorf("%w: a location, area or city is required", weather.ErrInvalidInput)
	}
	if err != nil {
		return weather.HistoricalSeries{}, err
	}

	if err := st.SetHistorical(series); err != nil {
		return weather.HistoricalSeries{}, err
	}
	series, _ = st.Historical()
	log.Printf("INFO: loaded %d days for %s (series %s)", series.Len(), series.Location.Key(), series.ID)
	return series, nil
}

// OnForecast fits each variable on the loaded series and stores the results.
// Nothing is stored unless every fit succeeds.
func (a *Actions) OnForecast(ctx context.Context, st *store.SeriesStore, variables []weather.Variable, days int) ([]weather.ForecastSeries, error) {
	hist, ok := st.Historical()
	if !ok {
		return nil, fmt.Errorf("%w: fetch historical data before forecasting", weather.ErrPreconditionFailed)
	}
	variables = dedupe(variables)
	if len(variables) == 0 {
		return nil, fmt.Errorf("%w: no variable to forecast", weather.ErrInvalidInput)
	}

	started := time.Now()
	result, err := a.forecaster.ForecastAll(ctx, hist, variables, days)
	elapsed := time.Since(started)
	for _, v := range variables {
		a.recordFit(string(v), elapsed, err)
	}
	if err != nil {
		log.Printf("ERROR: forecast failed for series %s: %v", hist.ID, err)
		return nil, err
	}

	for _, fs := range result {
		// A concurrent fetch may have replaced the history; the store rejects stale forecasts.
		if err := st.SetForecast(fs.Variable, fs); err != nil {
			return nil, err
		}
	}
	log.Printf("INFO: forecast %v for %d days on series %s in %s", variables, days, hist.ID, elapsed)
	return result, nil
}

// OnAsk routes question through the intent table and falls back to the
// answerer, with the digest as context, when nothing matches.
func (a *Actions) OnAsk(ctx context.Context, st *store.SeriesStore, question string) (query.Result, error) {
	res := query.RouteIntent(st, question)
	a.recordIntent(string(res.Intent))
	if res.Matched {
		return res, nil
	}

	answer, err := a.answerer.Answer(ctx, question, query.Summarize(st))
	if err != nil {
		return query.Result{}, fmt.Errorf("fallback answer: %w", err)
	}
	res.Answer = answer
	return res, nil
}

// Summary returns the digest of everything loaded in st.
func (a *Actions) Summary(st *store.SeriesStore) string {
	return query.Summarize(st)
}

func (a *Actions) recordFit(variable string, d time.Duration, err error) {
	if a.recorder != nil {
		a.recorder.RecordFit(variable, d, err)
	}
}

func (a *Actions) recordIntent(intent string) {
	if a.recorder != nil {
		a.recorder.RecordIntent(intent)
	}
}

func dedupe(vars []weather.Variable) []weather.Variable {
	seen := make(map[weather.Variable]struct{}, len(vars))
	out := make([]weather.Variable, 0, len(vars))
	for _, v := range vars {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
