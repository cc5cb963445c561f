// Package forecast fits an additive trend + seasonality model to a daily
// series and projects it forward with widening uncertainty bounds.
//
// The model is linear in its parameters: a piecewise-linear trend with
// changepoints, weekly and (for long enough spans) yearly Fourier terms.
// It is fitted by penalized least squares, so a fixed input always yields
// the same forecast.
package forecast

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/i474232898/area-weather-forecast/internal/weather"
)

// Engine produces forecasts; it holds no per-series state and is safe for
// concurrent use.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine. Zero option fields take their defaults.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Forecast fits variable on series and returns one point per day from the
// first historical date through End + horizonDays.
func (e *Engine) Forecast(ctx context.Context, series weather.HistoricalSeries, variable weather.Variable, horizonDays int) (weather.ForecastSeries, error) {
	if horizonDays <= 0 {
		return weather.ForecastSeries{}, fmt.Errorf("%w: horizon must be greater than zero", weather.ErrInvalidInput)
	}
	if err := series.Validate(); err != nil {
		return weather.ForecastSeries{}, err
	}
	if !series.Has(variable) {
		return weather.ForecastSeries{}, fmt.Errorf("%w: %s not present in series", weather.ErrInsufficientData, variable)
	}

	days := make([]int, 0, series.Len())
	ys := make([]float64, 0, series.Len())
	for _, o := range series.Observations {
		v := o.Get(variable)
		if !v.Valid || math.IsNaN(v.V) || math.IsInf(v.V, 0) {
			continue
		}
		days = append(days, dayIndex(o.Date))
		ys = append(ys, v.V)
	}
	if len(days) < 2 {
		return weather.ForecastSeries{}, fmt.Errorf("%w: %s has %d non-missing points, need at least 2", weather.ErrInsufficientData, variable, len(days))
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.FitTimeout)
	defer cancel()

	m, err := fitModel(ctx, days, ys, e.opts)
	if err != nil {
		return weather.ForecastSeries{}, err
	}

	z := distuv.UnitNormal.Quantile(0.5 + e.opts.IntervalWidth/2)
	row := make([]float64, m.width())
	last := series.End.AddDays(horizonDays)
	points := make([]weather.ForecastPoint, 0, series.Len()+horizonDays)
	for d := series.Start; !d.After(last); d = d.AddDays(1) {
		yhat, half := m.predict(dayIndex(d), z, row)
		if math.IsNaN(yhat) || math.IsInf(yhat, 0) || math.IsNaN(half) || math.IsInf(half, 0) {
			return weather.ForecastSeries{}, fmt.Errorf("%w: non-finite prediction on %s", weather.ErrNumericalFailure, d)
		}
		points = append(points, weather.ForecastPoint{
			Date:      d,
			Predicted: yhat,
			Lower:     yhat - half,
			Upper:     yhat + half,
		})
	}

	return weather.ForecastSeries{
		Variable: variable,
		SourceID: series.ID,
		Horizon:  horizonDays,
		Points:   points,
	}, nil
}

// ForecastAll fits each variable as an independent model, concurrently.
// It returns either every series or the first error.
func (e *Engine) ForecastAll(ctx context.Context, series weather.HistoricalSeries, variables []weather.Variable, horizonDays int) ([]weather.ForecastSeries, error) {
	out := make([]weather.ForecastSeries, len(variables))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range variables {
		g.Go(func() error {
			fs, err := e.Forecast(gctx, series, v, horizonDays)
			if err != nil {
				return fmt.Errorf("%s: %w", v, err)
			}
			out[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
