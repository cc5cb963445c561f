package weather

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// DaysInRange returns the number of calendar days in [start, end].
func DaysInRange(start, end civil.Date) int {
	if end.Before(start) {
		return 0
	}
	return end.DaysSince(start) + 1
}

// BuildSeries normalizes provider rows into a contiguous daily series over
// [start, end]. Days the provider skipped become rows with missing values,
// rows outside the range are dropped and duplicate dates are rejected.
func BuildSeries(loc Location, start, end civil.Date, vars []Variable, rows []DailyObservation) (HistoricalSeries, error) {
	if !start.IsValid() || !end.IsValid() {
		return HistoricalSeries{}, fmt.Errorf("%w: invalid date range", ErrInvalidInput)
	}
	if end.Before(start) {
		return HistoricalSeries{}, fmt.Errorf("%w: end date %s before start date %s", ErrInvalidInput, end, start)
	}
	if len(vars) == 0 {
		return HistoricalSeries{}, fmt.Errorf("%w: no variables requested", ErrInvalidInput)
	}

	byDate := make(map[civil.Date]DailyObservation, len(rows))
	for _, r := range rows {
		if _, dup := byDate[r.Date]; dup {
			return HistoricalSeries{}, fmt.Errorf("%w: duplicate date %s", ErrInvalidInput, r.Date)
		}
		byDate[r.Date] = r
	}

	n := DaysInRange(start, end)
	obs := make([]DailyObservation, 0, n)
	for d := start; !d.After(end); d = d.AddDays(1) {
		src := byDate[d]
		values := make(map[Variable]Value, len(vars))
		for _, v := range vars {
			values[v] = src.Get(v)
		}
		obs = append(obs, DailyObservation{Date: d, Values: values})
	}

	return HistoricalSeries{
		ID:           uuid.New(),
		Location:     loc,
		Start:        start,
		End:          end,
		Variables:    append([]Variable(nil), vars...),
		Observations: obs,
	}, nil
}

// Validate checks the series invariants: non-empty, strictly ascending and
// contiguous dates matching Start/End, and a shared variable set.
func (s HistoricalSeries) Validate() error {
	if len(s.Observations) == 0 {
		return fmt.Errorf("%w: empty series", ErrInvalidInput)
	}
	if len(s.Variables) == 0 {
		return fmt.Errorf("%w: series has no variables", ErrInvalidInput)
	}
	if s.Observations[0].Date != s.Start || s.Observations[len(s.Observations)-1].Date != s.End {
		return fmt.Errorf("%w: observations do not span %s..%s", ErrInvalidInput, s.Start, s.End)
	}

	seen := make(map[civil.Date]struct{}, len(s.Observations))
	for i, o := range s.Observations {
		if _, dup := seen[o.Date]; dup {
			return fmt.Errorf("%w: duplicate date %s", ErrInvalidInput, o.Date)
		}
		seen[o.Date] = struct{}{}

		if i > 0 && o.Date != s.Observations[i-1].Date.AddDays(1) {
			return fmt.Errorf("%w: dates not contiguous at %s", ErrInvalidInput, o.Date)
		}
		if len(o.Values) != len(s.Variables) {
			return fmt.Errorf("%w: variable set differs on %s", ErrInvalidInput, o.Date)
		}
		for _, v := range s.Variables {
			if _, ok := o.Values[v]; !ok {
				return fmt.Errorf("%w: %s missing from row %s", ErrInvalidInput, v, o.Date)
			}
		}
	}
	return nil
}

// Clone copies the row slice and value maps so the copy can be handed out
// without aliasing.
func (s HistoricalSeries) Clone() HistoricalSeries {
	out := s
	out.Variables = append([]Variable(nil), s.Variables...)
	out.Observations = make([]DailyObservation, len(s.Observations))
	for i, o := range s.Observations {
		values := make(map[Variable]Value, len(o.Values))
		for k, v := range o.Values {
			values[k] = v
		}
		out.Observations[i] = DailyObservation{Date: o.Date, Values: values}
	}
	return out
}
