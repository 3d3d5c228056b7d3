package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Worker is an ingestion task bound to one transport.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Supervisor starts the configured workers and tracks their lifecycle.
// Zero workers is accepted behavior: the state stays at its defaults.
type Supervisor struct {
	workers []Worker
	logger  *slog.Logger
	started atomic.Bool
	wg      sync.WaitGroup
}

// NewSupervisor creates a supervisor over the given workers.
func NewSupervisor(logger *slog.Logger, workers ...Worker) *Supervisor {
	return &Supervisor{workers: workers, logger: logger}
}

// Start launches every worker on its own goroutine. Worker errors are
// logged, never fatal to the process.
func (s *Supervisor) Start(ctx context.Context) {
	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w Worker) {
			defer s.wg.Done()
			if err := w.Run(ctx); err != nil {
				s.logger.Error("ingestion worker failed", "worker", w.Name(), "error", err)
			}
		}(w)
	}
	s.started.Store(true)
	if len(s.workers) == 0 {
		s.logger.Info("no ingestion transports configured, state frozen at defaults")
	}
}

// Wait blocks until all workers have returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// CheckReadiness reports ready once the workers have been started.
func (s *Supervisor) CheckReadiness(_ context.Context) error {
	if !s.started.Load() {
		return errors.New("ingestion workers not started yet")
	}
	return nil
}
