package store

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"kmviz/internal/driver"
)

// Recorder is a driver.Observer that mirrors the engine timeline into the
// store: steps are saved, step-backs drop the undone iteration.
type Recorder struct {
	ctx   context.Context
	store *Store
	runID uuid.UUID
	log   *slog.Logger
	err   error
}

var _ driver.Observer = (*Recorder)(nil)

// NewRecorder records frames for runID. ctx bounds every write.
func NewRecorder(ctx context.Context, s *Store, runID uuid.UUID, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{ctx: ctx, store: s, runID: runID, log: logger.With("run", runID.String())}
}

func (r *Recorder) Observe(f driver.Frame) {
	var err error
	switch f.Event {
	case driver.EventStepBack:
		err = r.store.Truncate(r.ctx, r.runID, f.Snapshot.Iteration)
	default:
		err = r.store.SaveSnapshot(r.ctx, r.runID, f.Snapshot)
	}
	if err != nil {
		r.log.Error("record snapshot", "event", f.Event, "iteration", f.Snapshot.Iteration, "error", err)
		if r.err == nil {
			r.err = err
		}
		return
	}
	r.log.Debug("recorded snapshot", "event", f.Event, "iteration", f.Snapshot.Iteration)
}

// Err returns the first write error.
func (r *Recorder) Err() error { return r.err }
