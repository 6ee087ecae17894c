package hooks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Executor executes lifecycle callbacks for document instances
type Executor struct {
	log *zap.SugaredLogger
}

// NewExecutor creates a new callback executor
func NewExecutor(log *zap.SugaredLogger) *Executor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Executor{log: log}
}

// Run executes the callbacks composed for the instance's class and phase,
// strictly in order. Each callback completes before the next starts, so a
// later callback sees the state an earlier one set. The first error stops
// the run. A phase without callbacks is a no-op.
func (e *Executor) Run(ctx context.Context, inst schema.Instance, phase schema.Phase) error {
	class := inst.Class()
	if !HasCallbacks(class, phase) {
		return nil
	}

	callbacks, err := Callbacks(class, phase)
	if err != nil {
		return err
	}

	for _, cb := range callbacks {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.log.Debugw("running callback", "class", class.Name(), "phase", phase.String(), "callback", cb.Name)
		if err := cb.Method(NewContext(ctx, class, phase, cb.Name), inst); err != nil {
			return fmt.Errorf("callback %s (%s) failed: %w", cb.Name, phase, err)
		}
	}
	return nil
}
