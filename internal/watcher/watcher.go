package watcher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/bbrks/ocado-ha/internal/config"
	"github.com/bbrks/ocado-ha/internal/pipeline"
)

// Service polls the mailbox on a fixed interval, running one pipeline cycle
// per tick. An unchanged mailbox or an in-flight cycle is routine, not an
// error; transport failures are logged and retried on the next tick.
type Service struct {
	runner *pipeline.Runner
	cfg    config.Config
	log    zerolog.Logger
}

func NewService(runner *pipeline.Runner, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{runner: runner, cfg: cfg, log: log}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.ScanIntervalSec) * time.Second

	for {
		s.tick()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) tick() {
	snap, err := s.runner.RunCycle()
	switch {
	case errors.Is(err, pipeline.ErrUnchanged):
		s.log.Debug().Msg("mailbox unchanged")
	case errors.Is(err, pipeline.ErrCycleInProgress):
		s.log.Debug().Msg("previous cycle still running, tick dropped")
	case err != nil:
		s.log.Error().Err(err).Msg("cycle failed")
	default:
		s.log.Info().
			Str("run_id", snap.RunID).
			Str("next_order", snap.Next.OrderNumber).
			Msg("snapshot updated")
	}
}
