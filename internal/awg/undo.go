package awg

import (
	"fmt"

	"github.com/google/uuid"
)

// undoLog is the rollback side of one upload transaction: an inverse
// operation is pushed after each forward device write succeeds, the whole
// list runs in reverse if a later step fails, and commit discards it once
// every step has gone through.
type undoLog struct {
	token string
	steps []undoStep
}

type undoStep struct {
	desc string
	fn   func() error
}

// newUndoLog starts a transaction log. The UUIDv7 token identifies the
// transaction in error messages; time-ordered tokens keep interleaved logs
// from different sessions sortable.
func newUndoLog() *undoLog {
	return &undoLog{token: uuid.Must(uuid.NewV7()).String()}
}

// Token returns the transaction identifier.
func (l *undoLog) Token() string {
	return l.token
}

// push records the inverse of a forward step that just succeeded.
func (l *undoLog) push(desc string, fn func() error) {
	l.steps = append(l.steps, undoStep{desc: desc, fn: fn})
}

// rollback executes every recorded inverse in reverse order. Best effort: a
// failing compensation is reported and the rest still run.
func (l *undoLog) rollback() []error {
	var errs []error
	for i := len(l.steps) - 1; i >= 0; i-- {
		step := l.steps[i]
		if err := step.fn(); err != nil {
			errs = append(errs, fmt.Errorf("compensate %q (tx %s): %w", step.desc, l.token, err))
		}
	}
	l.steps = nil
	return errs
}

// commit discards the log; compensations are no longer needed once the full
// transaction has succeeded.
func (l *undoLog) commit() {
	l.steps = nil
}

// depth returns the number of pending compensations.
func (l *undoLog) depth() int {
	return len(l.steps)
}
