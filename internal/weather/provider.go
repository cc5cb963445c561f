package weather

import (
	"context"

	"cloud.google.com/go/civil"
)

// HistoricalRequest describes one point fetch.
type HistoricalRequest struct {
	Location  Location
	Start     civil.Date
	End       civil.Date
	Variables []Variable
}

// HistoricalProvider abstracts a daily weather archive (e.g. Open-Meteo, WeatherAPI).
// Providers may omit days; the service turns gaps into missing values.
type HistoricalProvider interface {
	Name() string
	FetchDaily(ctx context.Context, req HistoricalRequest) ([]DailyObservation, error)
}

// FetchRecorder observes provider outcomes.
type FetchRecorder interface {
	RecordFetch(provider string, err error)
}
