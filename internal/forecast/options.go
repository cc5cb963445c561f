package forecast

import "time"

// Options tunes the additive model. Zero fields fall back to DefaultOptions.
type Options struct {
	// Changepoints is the maximum number of trend changepoints; negative disables them.
	Changepoints int
	// ChangepointRange is the leading fraction of observed points eligible for changepoints.
	ChangepointRange float64

	ChangepointPriorScale float64
	SeasonalityPriorScale float64
	TrendPriorScale       float64

	WeeklyOrder int
	YearlyOrder int
	// YearlyMinDays is the minimum observed span that enables the yearly cycle.
	YearlyMinDays int

	// IntervalWidth is the coverage of the uncertainty interval, e.g. 0.8.
	IntervalWidth float64

	// Tolerance bounds the relative backward error of the normal-equation solve.
	Tolerance  float64
	FitTimeout time.Duration
}

// DefaultOptions mirrors the usual Prophet defaults.
func DefaultOptions() Options {
	return Options{
		Changepoints:          25,
		ChangepointRange:      0.8,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		TrendPriorScale:       5,
		WeeklyOrder:           3,
		YearlyOrder:           10,
		YearlyMinDays:         365,
		IntervalWidth:         0.8,
		Tolerance:             1e-9,
		FitTimeout:            30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Changepoints < 0 {
		o.Changepoints = 0
	} else if o.Changepoints == 0 {
		o.Changepoints = d.Changepoints
	}
	if o.ChangepointRange <= 0 || o.ChangepointRange > 1 {
		o.ChangepointRange = d.ChangepointRange
	}
	if o.ChangepointPriorScale <= 0 {
		o.ChangepointPriorScale = d.ChangepointPriorScale
	}
	if o.SeasonalityPriorScale <= 0 {
		o.SeasonalityPriorScale = d.SeasonalityPriorScale
	}
	if o.TrendPriorScale <= 0 {
		o.TrendPriorScale = d.TrendPriorScale
	}
	if o.WeeklyOrder <= 0 {
		o.WeeklyOrder = d.WeeklyOrder
	}
	if o.YearlyOrder <= 0 {
		o.YearlyOrder = d.YearlyOrder
	}
	if o.YearlyMinDays <= 0 {
		o.YearlyMinDays = d.YearlyMinDays
	}
	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		o.IntervalWidth = d.IntervalWidth
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.FitTimeout <= 0 {
		o.FitTimeout = d.FitTimeout
	}
	return o
}
