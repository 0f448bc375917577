package jobstore

import (
	"context"

	"github.com/pagecast/pagecast/internal/structure"
)

// Store is the job persistence boundary. Append is the only write path
// for job state; snapshots hold the serialized document structure taken
// after each pipeline stage.
type Store interface {
	// Append adds an event to a job's log. Appending to a job whose
	// reduced state is terminal returns ErrJobTerminal.
	Append(ctx context.Context, ev Event) error

	// Events returns a job's full event log in append order.
	Events(ctx context.Context, jobID string) ([]Event, error)

	// Job materializes the current job view. Returns ErrNotFound for an
	// unknown id.
	Job(ctx context.Context, jobID string) (*structure.ConversionJob, error)

	// Jobs materializes every known job, newest first.
	Jobs(ctx context.Context) ([]*structure.ConversionJob, error)

	// SaveSnapshot stores the document structure as of a completed step,
	// replacing any earlier snapshot for the same step.
	SaveSnapshot(ctx context.Context, jobID string, step structure.Step, doc []byte) error

	// Snapshot returns the stored document structure for a step, or
	// ErrNotFound when none was taken.
	Snapshot(ctx context.Context, jobID string, step structure.Step) ([]byte, error)

	Close() error
}
