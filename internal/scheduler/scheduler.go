package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Sweeper drops idle sessions (store.Sessions).
type Sweeper interface {
	EvictIdle() int
	Len() int
}

// Gauge receives the live session count after each sweep.
type Gauge interface {
	SetActiveSessions(n int)
}

// Scheduler periodically evicts idle sessions.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	gauge     Gauge
	interval  time.Duration
}

// New creates a new Scheduler. gauge may be nil.
func New(sweeper Sweeper, interval time.Duration, gauge Gauge) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		sweeper:   sweeper,
		gauge:     gauge,
		interval:  interval,
	}
}

// Start schedules the sweep job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 60
	}

	_, err := s.scheduler.Every(seconds).Seconds().Do(s.Sweep)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Sweep runs one eviction pass.
func (s *Scheduler) Sweep() {
	evicted := s.sweeper.EvictIdle()
	live := s.sweeper.Len()
	if evicted > 0 {
		log.Printf("INFO: scheduler: evicted %d idle sessions, %d live", evicted, live)
	}
	if s.gauge != nil {
		s.gauge.SetActiveSessions(live)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
