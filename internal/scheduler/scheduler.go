// Package scheduler wires up the cron job that periodically triggers a crawl.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"LectureCrawler/internal/app"

	"github.com/robfig/cron/v3"
)

// Handler runs one crawl.
type Handler interface {
	Handle(ctx context.Context, event any) (app.Response, error)
}

// Scheduler wraps robfig/cron and triggers the crawl on a fixed spec.
type Scheduler struct {
	cron       *cron.Cron
	handler    Handler
	spec       string // cron spec, e.g. "@every 24h"
	runOnStart bool

	// startup tracks the run-on-start crawl, which cron does not know about.
	startup sync.WaitGroup
}

// New creates a Scheduler. Overlapping ticks are skipped while a crawl is
// still running.
func New(h Handler, spec string, runOnStart bool) *Scheduler {
	logger := cron.DefaultLogger
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger))),
		handler:    h,
		spec:       spec,
		runOnStart: runOnStart,
	}
}

// Start registers the job and starts the scheduler. With runOnStart one
// crawl is started immediately without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCrawl(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	slog.Info("scheduler started", "spec", s.spec)

	if s.runOnStart {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.runCrawl(ctx)
		}()
	}
	return nil
}

// Stop shuts the scheduler down and returns a context that is done once
// running jobs, including the run-on-start crawl, have finished.
func (s *Scheduler) Stop() context.Context {
	cronDone := s.cron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.startup.Wait()
		slog.Info("scheduler stopped")
		cancel()
	}()
	return ctx
}

func (s *Scheduler) runCrawl(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	resp, err := s.handler.Handle(ctx, nil)
	switch {
	case errors.Is(err, app.ErrRunInProgress):
		slog.Warn("previous crawl still running, skipping tick")
	case err != nil:
		slog.Error("scheduled crawl failed", "error", err, "summary", resp.Body)
	default:
		slog.Info("scheduled crawl complete", "summary", resp.Body)
	}
}
