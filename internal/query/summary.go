// Package query answers read-only questions against a session's series.
// It never fits models; it only reads what the store already holds.
package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/i474232898/area-weather-forecast/internal/weather"
)

// NoDataMessage is returned by Summarize when nothing is loaded.
const NoDataMessage = "No weather data available. Fetch historical data for an area first."

// Reader is the read side of a session store.
type Reader interface {
	Historical() (weather.HistoricalSeries, bool)
	Forecasts() []weather.ForecastSeries
}

// Stats are scalar statistics over the non-missing values of one column.
type Stats struct {
	Count   int
	Missing int
	Mean    float64
	Min     float64
	Max     float64
	Sum     float64
}

// ColumnStats computes Stats for values.
func ColumnStats(values []weather.Value) Stats {
	st := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		if !v.Valid {
			st.Missing++
			continue
		}
		st.Count++
		st.Sum += v.V
		st.Min = math.Min(st.Min, v.V)
		st.Max = math.Max(st.Max, v.V)
	}
	if st.Count == 0 {
		st.Min, st.Max = 0, 0
		return st
	}
	st.Mean = st.Sum / float64(st.Count)
	return st
}

// PredictionStats returns mean and max of the predicted values.
func PredictionStats(points []weather.ForecastPoint) (mean, max float64) {
	if len(points) == 0 {
		return 0, 0
	}
	max = math.Inf(-1)
	var sum float64
	for _, p := range points {
		sum += p.Predicted
		max = math.Max(max, p.Predicted)
	}
	return sum / float64(len(points)), max
}

// Summarize builds a deterministic digest of everything in r.
func Summarize(r Reader) string {
	hist, ok := r.Historical()
	if !ok {
		return NoDataMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Historical weather for %s from %s to %s (%d days).\n",
		describeLocation(hist.Location), hist.Start, hist.End, hist.Len())

	for _, v := range orderedVariables(hist.Variables) {
		st := ColumnStats(hist.Column(v))
		if st.Count == 0 {
			fmt.Fprintf(&b, "- %s: no values (%d missing)\n", v, st.Missing)
			continue
		}
		fmt.Fprintf(&b, "- %s (%s): mean %.2f, min %.2f, max %.2f, sum %.2f, missing %d\n",
			v, v.Unit(), st.Mean, st.Min, st.Max, st.Sum, st.Missing)
	}

	forecasts := r.Forecasts()
	if len(forecasts) == 0 {
		b.WriteString("No forecasts computed.")
		return b.String()
	}

	b.WriteString("Forecasts:")
	for _, fs := range forecasts {
		future := fs.Future()
		mean, max := PredictionStats(future)
		through := hist.End
		if len(future) > 0 {
			through = future[len(future)-1].Date
		}
		fmt.Fprintf(&b, "\n- %s: next %d days mean %.2f, max %.2f %s (through %s)",
			fs.Variable, fs.Horizon, mean, max, fs.Variable.Unit(), through)
	}
	return b.String()
}

func describeLocation(l weather.Location) string {
	if l.City != "" {
		return fmt.Sprintf("%s, %s (%.4f, %.4f)", l.City, l.Country, l.Latitude, l.Longitude)
	}
	return fmt.Sprintf("%.4f, %.4f", l.Latitude, l.Longitude)
}

// orderedVariables sorts vars into weather.AllVariables order.
func orderedVariables(vars []weather.Variable) []weather.Variable {
	out := make([]weather.Variable, 0, len(vars))
	for _, known := range weather.AllVariables {
		for _, v := range vars {
			if v == known {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
