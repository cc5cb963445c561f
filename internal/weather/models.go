package weather

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Variable names a daily weather quantity.
type Variable string

const (
	MaxTemperature     Variable = "max_temperature"
	MinTemperature     Variable = "min_temperature"
	PrecipitationTotal Variable = "precipitation_total"
	RainTotal          Variable = "rain_total"
	MaxWindSpeed       Variable = "max_wind_speed"
)

// AllVariables lists every supported variable in display order.
var AllVariables = []Variable{
	MaxTemperature,
	MinTemperature,
	PrecipitationTotal,
	RainTotal,
	MaxWindSpeed,
}

// DefaultVariables are fetched when a request does not name any.
var DefaultVariables = []Variable{MaxTemperature, PrecipitationTotal}

// ParseVariable validates a variable name.
func ParseVariable(s string) (Variable, error) {
	for _, v := range AllVariables {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown variable %q", ErrInvalidInput, s)
}

// Unit returns the display unit of the variable.
func (v Variable) Unit() string {
	switch v {
	case MaxTemperature, MinTemperature:
		return "°C"
	case PrecipitationTotal, RainTotal:
		return "mm"
	case MaxWindSpeed:
		return "km/h"
	default:
		return ""
	}
}

// Label is a human readable name for digests and answers.
func (v Variable) Label() string {
	switch v {
	case MaxTemperature:
		return "max temperature"
	case MinTemperature:
		return "min temperature"
	case PrecipitationTotal:
		return "precipitation"
	case RainTotal:
		return "rain"
	case MaxWindSpeed:
		return "max wind speed"
	default:
		return string(v)
	}
}

// Value is a float that may be explicitly missing.
type Value struct {
	V     float64
	Valid bool
}

// Some wraps a present value.
func Some(v float64) Value {
	return Value{V: v, Valid: true}
}

// Missing marks a gap, e.g. a provider outage day.
var Missing = Value{}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid || math.IsNaN(v.V) || math.IsInf(v.V, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v.V, 'f', -1, 64)), nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Missing
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Location is a point on the globe. City/Country are set when the
// location was geocoded from a place name.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// Key returns a canonical string key for the coordinates.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90,90]", ErrInvalidInput, l.Latitude)
	}
	if math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180,180]", ErrInvalidInput, l.Longitude)
	}
	return nil
}

// DailyObservation is one calendar day's record for a point location.
type DailyObservation struct {
	Date   civil.Date         `json:"date"`
	Values map[Variable]Value `json:"values"`
}

// Get returns the value for v, Missing when absent.
func (o DailyObservation) Get(v Variable) Value {
	if o.Values == nil {
		return Missing
	}
	return o.Values[v]
}

// HistoricalSeries is a contiguous, date ordered run of observations for
// one location. It is replaced wholesale, never mutated in place.
type HistoricalSeries struct {
	ID           uuid.UUID          `json:"id"`
	Location     Location           `json:"location"`
	Start        civil.Date         `json:"start"`
	End          civil.Date         `json:"end"`
	Variables    []Variable         `json:"variables"`
	Observations []DailyObservation `json:"observations"`
}

// Len returns the number of daily rows.
func (s HistoricalSeries) Len() int {
	return len(s.Observations)
}

// Has reports whether v is part of the series' variable set.
func (s HistoricalSeries) Has(v Variable) bool {
	for _, sv := range s.Variables {
		if sv == v {
			return true
		}
	}
	return false
}

// Column returns the values of v in date order.
func (s HistoricalSeries) Column(v Variable) []Value {
	out := make([]Value, len(s.Observations))
	for i, o := range s.Observations {
		out[i] = o.Get(v)
	}
	return out
}

// LastValid returns the most recent non-missing value of v and its date.
func (s HistoricalSeries) LastValid(v Variable) (float64, civil.Date, bool) {
	for i := len(s.Observations) - 1; i >= 0; i-- {
		if val := s.Observations[i].Get(v); val.Valid {
			return val.V, s.Observations[i].Date, true
		}
	}
	return 0, civil.Date{}, false
}

// ForecastPoint is one day's prediction with its uncertainty interval.
type ForecastPoint struct {
	Date      civil.Date `json:"date"`
	Predicted float64    `json:"predicted"`
	Lower     float64    `json:"lower"`
	Upper     float64    `json:"upper"`
}

// ForecastSeries holds the in-sample fit followed by Horizon future days
// for exactly one variable. SourceID is the ID of the HistoricalSeries it
// was derived from.
type ForecastSeries struct {
	Variable Variable        `json:"variable"`
	SourceID uuid.UUID       `json:"sourceId"`
	Horizon  int             `json:"horizon"`
	Points   []ForecastPoint `json:"points"`
}

// Clone returns a copy that shares no memory with f.
func (f ForecastSeries) Clone() ForecastSeries {
	out := f
	out.Points = append([]ForecastPoint(nil), f.Points...)
	return out
}

// Future returns only the out-of-sample points.
func (f ForecastSeries) Future() []ForecastPoint {
	if f.Horizon <= 0 || f.Horizon > len(f.Points) {
		return nil
	}
	return f.Points[len(f.Points)-f.Horizon:]
}
