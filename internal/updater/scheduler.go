package updater

import (
	"context"
	stderrors "errors"

	"github.com/robfig/cron/v3"

	"github.com/retailkit/catalog/pkg/errx"
)

// Scheduler triggers update cycles on a cron spec. Overlapping fires are
// absorbed by the engine's in-progress guard.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
}

func NewScheduler(e *Engine, spec string) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{cron: c, engine: e}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) run() {
	_, err := s.engine.Update(context.Background())
	switch {
	case err == nil:
	case stderrors.Is(err, errx.ErrUpdateInProgress):
		s.engine.log.Debugw("scheduled update skipped, cycle active")
	default:
		s.engine.log.Warnw("scheduled update failed", "err", err)
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling; a running cycle finishes on its own.
func (s *Scheduler) Stop() { s.cron.Stop() }
