package weather

import (
	"fmt"

	"github.com/google/uuid"
)

// AverageSeries combines the series of several grid points into one series
// for loc. Each day's value is the mean of the points that reported it; a
// day stays missing only when every point is missing.
func AverageSeries(loc Location, series []HistoricalSeries) (HistoricalSeries, error) {
	if len(series) == 0 {
		return HistoricalSeries{}, fmt.Errorf("%w: nothing to average", ErrInvalidInput)
	}
	first := series[0]
	for _, s := range series[1:] {
		if s.Start != first.Start || s.End != first.End || s.Len() != first.Len() {
			return HistoricalSeries{}, fmt.Errorf("%w: grid series cover different ranges", ErrInvalidInput)
		}
	}

	obs := make([]DailyObservation, first.Len())
	for i := range obs {
		values := make(map[Variable]Value, len(first.Variables))
		for _, v := range first.Variables {
			var (
				sum   float64
				count int
			)
			for _, s := range series {
				if val := s.Observations[i].Get(v); val.Valid {
					sum += val.V
					count++
				}
			}
			if count == 0 {
				values[v] = Missing
				continue
			}
			values[v] = Some(sum / float64(count))
		}
		obs[i] = DailyObservation{Date: first.Observations[i].Date, Values: values}
	}

	return HistoricalSeries{
		ID:           uuid.New(),
		Location:     loc,
		Start:        first.Start,
		End:          first.End,
		Variables:    append([]Variable(nil), first.Variables...),
		Observations: obs,
	}, nil
}
