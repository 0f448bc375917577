// Package jobstore persists conversion jobs as an append-only event log.
// The job record shown to callers is always materialized by reducing the
// log, so progress history is never overwritten and terminal states cannot
// be mutated after the fact.
package jobstore

import (
	"errors"
	"time"

	"github.com/pagecast/pagecast/internal/structure"
)

// EventKind discriminates the progress events a job can emit.
type EventKind string

const (
	EventCreated       EventKind = "created"
	EventStepStarted   EventKind = "step_started"
	EventStepCompleted EventKind = "step_completed"
	EventCompleted     EventKind = "completed"
	EventFailed        EventKind = "failed"
	EventCancelled     EventKind = "cancelled"
)

// Event is one entry in a job's progress log.
type Event struct {
	JobID      string         `json:"job_id"`
	Seq        int64          `json:"seq"`
	Kind       EventKind      `json:"kind"`
	Step       structure.Step `json:"step"`
	SourcePath string         `json:"source_path,omitempty"`
	Message    string         `json:"message,omitempty"`
	EpubPath   string         `json:"epub_path,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	At         time.Time      `json:"at"`
}

// ErrJobTerminal is returned when appending to a job whose reduced state
// is already final.
var ErrJobTerminal = errors.New("jobstore: job is in a terminal state")

// ErrNotFound is returned when a job id has no events.
var ErrNotFound = errors.New("jobstore: job not found")

// reviewThreshold is the document confidence below which a completed job
// is flagged for human review.
const reviewThreshold = 0.7

// Reduce materializes the job view from its ordered event log. Events
// after a terminal event are ignored; the store refuses to append them,
// but the reducer stays total over whatever log it is handed.
func Reduce(jobID string, events []Event) *structure.ConversionJob {
	job := &structure.ConversionJob{
		ID:     jobID,
		Status: structure.JobPending,
	}

	for _, ev := range events {
		if job.Status.Terminal() {
			break
		}
		switch ev.Kind {
		case EventCreated:
			job.SourcePath = ev.SourcePath
			job.CreatedAt = ev.At
		case EventStepStarted:
			if job.Status == structure.JobPending {
				job.Status = structure.JobInProgress
				at := ev.At
				job.StartedAt = &at
			}
			job.CurrentStep = ev.Step
			job.ProgressPercent = ev.Step.Progress()
		case EventStepCompleted:
			job.CurrentStep = ev.Step
			if next := ev.Step + 1; int(next) < structure.StepCount {
				job.ProgressPercent = next.Progress()
			}
		case EventCompleted:
			job.Status = structure.JobCompleted
			job.ProgressPercent = 100
			job.EpubPath = ev.EpubPath
			job.ConfidenceScore = ev.Confidence
			job.RequiresReview = ev.Confidence < reviewThreshold
			at := ev.At
			job.CompletedAt = &at
		case EventFailed:
			job.Status = structure.JobFailed
			job.ErrorMessage = structure.TruncateError(ev.Message)
			at := ev.At
			job.CompletedAt = &at
		case EventCancelled:
			job.Status = structure.JobCancelled
			at := ev.At
			job.CompletedAt = &at
		}
	}

	return job
}
