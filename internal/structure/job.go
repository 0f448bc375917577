package structure

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a conversion job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs accept no
// further writes.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Step identifies one of the nine ordered pipeline stages.
type Step int

const (
	StepClassification Step = iota
	StepTextExtraction
	StepLayoutAnalysis
	StepSemanticStructuring
	StepAccessibility
	StepContentCleanup
	StepSpecialContent
	StepEpubGeneration
	StepQAReview
)

// StepCount is the number of pipeline stages.
const StepCount = 9

var stepNames = [StepCount]string{
	"classification",
	"text_extraction",
	"layout_analysis",
	"semantic_structuring",
	"accessibility",
	"content_cleanup",
	"special_content",
	"epub_generation",
	"qa_review",
}

func (s Step) String() string {
	if s < 0 || int(s) >= StepCount {
		return "unknown"
	}
	return stepNames[s]
}

// Progress returns the percentage reported when this step begins.
func (s Step) Progress() int {
	return int(s) * 100 / StepCount
}

// MaxErrorMessageLen caps the user-visible error message of a failed job.
const MaxErrorMessageLen = 500

// ConversionJob is the job record for one source document. It is created
// when a conversion is requested and mutated exclusively by the
// orchestrator through the job store's event log.
type ConversionJob struct {
	ID              string     `json:"id"`
	SourcePath      string     `json:"source_path"`
	Status          JobStatus  `json:"status"`
	CurrentStep     Step       `json:"current_step"`
	ProgressPercent int        `json:"progress_percent"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	EpubPath        string     `json:"epub_path,omitempty"`
	ConfidenceScore float64    `json:"confidence_score,omitempty"`
	RequiresReview  bool       `json:"requires_review"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// NewConversionJob creates a pending job for a source file.
func NewConversionJob(sourcePath string) *ConversionJob {
	return &ConversionJob{
		ID:         uuid.New().String(),
		SourcePath: sourcePath,
		Status:     JobPending,
		CreatedAt:  time.Now().UTC(),
	}
}

// TruncateError trims an error message to MaxErrorMessageLen characters.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorMessageLen {
		return msg
	}
	return msg[:MaxErrorMessageLen]
}
