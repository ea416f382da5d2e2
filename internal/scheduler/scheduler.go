// Package scheduler runs the weekly report dispatch on a cron expression
// evaluated in the reporting timezone.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kmalloy/workhours/internal/envutil"
	"github.com/kmalloy/workhours/internal/logging"
)

// DefaultSpec fires Monday 09:00 in the reporting zone, right at the
// submission cutoff for the prior week.
const DefaultSpec = "0 9 * * 1"

func SpecFromEnv() string {
	return envutil.OrDefault("REPORT_CRON", DefaultSpec)
}

type Scheduler struct {
	cron *cron.Cron
	log  logging.Logger
}

func New(zone *time.Location, log logging.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(zone)),
		log:  log,
	}
}

// AddWeeklyReport registers the dispatch job. Job errors are logged, never
// fatal; the next tick retries from scratch.
func (s *Scheduler) AddWeeklyReport(spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		s.log.Info(ctx, "scheduled report dispatch starting", "spec", spec)
		if err := job(ctx); err != nil {
			s.log.Error(ctx, "scheduled report dispatch failed", "error", err)
			return
		}
		s.log.Info(ctx, "scheduled report dispatch finished")
	})
	if err != nil {
		return fmt.Errorf("register report schedule %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
