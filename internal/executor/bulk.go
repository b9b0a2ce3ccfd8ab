package executor

import (
	"context"

	"procurement/internal/workflow"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// Outcome is the result of one document in a bulk action.
type Outcome struct {
	ID     string
	Result Result
	Err    error
}

// ApplySelected runs action kind on every selected document with at most
// concurrency calls in flight. Each document goes through ApplyAction, so the
// in-flight guard and permission checks hold per document. Outcomes follow the
// order of Store.Selected.
func (e *Executor) ApplySelected(ctx context.Context, kind workflow.ActionKind, concurrency int, opts ...ApplyOption) []Outcome {
	ids := e.store.Selected()
	if len(ids) == 0 {
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	out := make([]Outcome, len(ids))
	pool := pond.NewPool(concurrency, pond.WithContext(ctx))
	for i, id := range ids {
		pool.Submit(func() {
			res, err := e.ApplyAction(ctx, id, kind, opts...)
			out[i] = Outcome{ID: id, Result: res, Err: err}
		})
	}
	pool.StopAndWait()

	failed := 0
	for i := range out {
		if out[i].ID == "" {
			// Never ran because ctx was cancelled before the task started.
			out[i] = Outcome{ID: ids[i], Err: context.Cause(ctx)}
		}
		if out[i].Err != nil {
			failed++
		}
	}
	e.log.Info("bulk action finished",
		zap.String("action", kind.String()),
		zap.Int("documents", len(ids)),
		zap.Int("failed", failed))
	return out
}
