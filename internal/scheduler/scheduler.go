package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/airsense/aqicast/internal/pipeline"
)

// Scheduler periodically touches the live cache so interactive requests
// rarely pay for a rebuild.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *pipeline.Service
	interval  time.Duration
}

// New creates a new Scheduler.
func New(interval time.Duration, service *pipeline.Service) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		interval:  interval,
	}
}

// Start schedules the periodic refresh job and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: refreshing live series cache")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if _, err := s.service.CurrentSeries(ctx, time.Now().UTC()); err != nil {
			log.Printf("scheduler: cache refresh failed: %v", err)
			return
		}
		log.Println("scheduler: cache refresh completed")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
