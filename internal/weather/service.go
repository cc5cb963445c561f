package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gammazero/workerpool"
)

// Service fetches historical series from an ordered list of providers.
// The first provider that succeeds wins; the rest act as fallbacks.
type Service struct {
	providers []HistoricalProvider
	workers   int
	recorder  FetchRecorder
}

// NewService creates a new Service. workers bounds concurrent grid fetches.
func NewService(providers []HistoricalProvider, workers int, recorder FetchRecorder) *Service {
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		providers: providers,
		workers:   workers,
		recorder:  recorder,
	}
}

// FetchPoint returns a contiguous daily series for a single location.
func (s *Service) FetchPoint(ctx context.Context, req HistoricalRequest) (HistoricalSeries, error) {
	if err := req.Location.Validate(); err != nil {
		return HistoricalSeries{}, err
	}
	if len(req.Variables) == 0 {
		req.Variables = DefaultVariables
	}
	if req.End.Before(req.Start) {
		return HistoricalSeries{}, fmt.Errorf("%w: end date %s before start date %s", ErrInvalidInput, req.End, req.Start)
	}

	log.Printf("DEBUG: FetchPoint called for %s %s..%s with %d providers", req.Location.Key(), req.Start, req.End, len(s.providers))
	if len(s.providers) == 0 {
		return HistoricalSeries{}, fmt.Errorf("%w: no weather providers configured", ErrFetchFailed)
	}

	var lastErr error
	for _, p := range s.providers {
		rows, err := p.FetchDaily(ctx, req)
		s.record(p.Name(), err)
		if err != nil {
			log.Printf("provider %s fetch failed for %s: %v", p.Name(), req.Location.Key(), err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		series, err := BuildSeries(req.Location, req.Start, req.End, req.Variables, rows)
		if err != nil {
			log.Printf("provider %s returned malformed data for %s: %v", p.Name(), req.Location.Key(), err)
			lastErr = err
			continue
		}
		return series, nil
	}

	return HistoricalSeries{}, fmt.Errorf("%w: %v", ErrFetchFailed, lastErr)
}

// FetchArea fetches every grid point of the area concurrently and averages
// the successful series. Partial success is accepted; it fails only when no
// grid point could be fetched.
func (s *Service) FetchArea(ctx context.Context, area Area, gridSize int, req HistoricalRequest) (HistoricalSeries, error) {
	points := area.GridPoints(gridSize)

	var (
		mu    sync.Mutex
		slots = make([]*HistoricalSeries, len(points))
		errs  []error
	)

	wp := workerpool.New(s.workers)
	for i, pt := range points {
		pointReq := req
		pointReq.Location = pt
		wp.Submit(func() {
			series, err := s.FetchPoint(ctx, pointReq)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			slots[i] = &series
		})
	}
	wp.StopWait()

	// Keep grid order so the average does not depend on completion order.
	results := make([]HistoricalSeries, 0, len(points))
	for _, sp := range slots {
		if sp != nil {
			results = append(results, *sp)
		}
	}

	if len(results) == 0 {
		return HistoricalSeries{}, fmt.Errorf("%w: no grid point succeeded: %w", ErrFetchFailed, errors.Join(errs...))
	}
	if len(errs) > 0 {
		log.Printf("INFO: area fetch kept %d of %d grid points", len(results), len(points))
	}

	loc, err := area.Centroid()
	if err != nil {
		loc = area.Center()
	}
	return AverageSeries(loc, results)
}

func (s *Service) record(provider string, err error) {
	if s.recorder != nil {
		s.recorder.RecordFetch(provider, err)
	}
}
