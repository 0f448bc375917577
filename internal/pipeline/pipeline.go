// Package pipeline orchestrates the nine-stage conversion of a source
// document into an accessible fixed-layout EPUB. Stages run strictly
// sequentially per job; each stage takes the document structure produced
// by the previous one and returns a fresh value, which the orchestrator
// snapshots before moving on.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagecast/pagecast/internal/ai"
	"github.com/pagecast/pagecast/internal/classify"
	"github.com/pagecast/pagecast/internal/jobs"
	"github.com/pagecast/pagecast/internal/jobstore"
	"github.com/pagecast/pagecast/internal/ocr"
	"github.com/pagecast/pagecast/internal/pdf"
	"github.com/pagecast/pagecast/internal/structure"
)

// maxConsecutiveOCRFailures is the threshold after which OCR is abandoned
// for the remaining scanned pages of a job.
const maxConsecutiveOCRFailures = 3

// defaultConfidence is the document confidence assumed when no page or
// block recorded a signal.
const defaultConfidence = 0.8

// Orchestrator runs conversion jobs. All job state flows through the
// store's event log; the orchestrator holds no per-job state itself.
type Orchestrator struct {
	store      jobstore.Store
	opener     pdf.Opener
	recognizer *ocr.Recognizer // nil disables OCR
	aiService  *ai.Service     // nil disables AI enhancement
	pool       *jobs.Pool
	workDir    string
	outDir     string
	logger     *slog.Logger
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Store      jobstore.Store
	Opener     pdf.Opener
	Recognizer *ocr.Recognizer
	AIService  *ai.Service
	Pool       *jobs.Pool
	WorkDir    string // per-job scratch space (rendered page images)
	OutDir     string // finished archives
	Logger     *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:      cfg.Store,
		opener:     cfg.Opener,
		recognizer: cfg.Recognizer,
		aiService:  cfg.AIService,
		pool:       cfg.Pool,
		workDir:    cfg.WorkDir,
		outDir:     cfg.OutDir,
		logger:     logger.With("component", "pipeline"),
	}
}

// Submit creates a job for sourcePath and dispatches it to the pool. The
// call returns as soon as the job is queued; job state is the only channel
// between the submitter and the worker.
func (o *Orchestrator) Submit(ctx context.Context, sourcePath string) (*structure.ConversionJob, error) {
	job := structure.NewConversionJob(sourcePath)
	if err := o.store.Append(ctx, jobstore.Event{
		JobID:      job.ID,
		Kind:       jobstore.EventCreated,
		SourcePath: sourcePath,
	}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := o.pool.Submit(func(workerCtx context.Context) {
		o.Run(workerCtx, job.ID)
	}); err != nil {
		o.append(ctx, jobstore.Event{
			JobID:   job.ID,
			Kind:    jobstore.EventFailed,
			Message: err.Error(),
		})
		return nil, fmt.Errorf("dispatch job: %w", err)
	}

	return o.store.Job(ctx, job.ID)
}

// Cancel requests cooperative cancellation. The orchestrator observes the
// cancelled state between stages and stops advancing; an in-flight stage
// is not interrupted.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	err := o.store.Append(ctx, jobstore.Event{JobID: jobID, Kind: jobstore.EventCancelled})
	if errors.Is(err, jobstore.ErrJobTerminal) {
		return err
	}
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return nil
}

// Job returns the materialized view of a job.
func (o *Orchestrator) Job(ctx context.Context, jobID string) (*structure.ConversionJob, error) {
	return o.store.Job(ctx, jobID)
}

// Jobs lists all known jobs, newest first.
func (o *Orchestrator) Jobs(ctx context.Context) ([]*structure.ConversionJob, error) {
	return o.store.Jobs(ctx)
}

// stage is one pipeline step: it consumes the previous document structure
// and returns a fresh one.
type stage struct {
	step structure.Step
	run  func(ctx context.Context, rt *jobRuntime, doc *structure.DocumentStructure) (*structure.DocumentStructure, error)
}

// jobRuntime carries per-job resources through the stages.
type jobRuntime struct {
	jobID      string
	sourcePath string
	decoder    pdf.Decoder
	pagesDir   string
	epubPath   string
	logger     *slog.Logger

	ocrFailures  int
	ocrAbandoned bool
	syncs        []structure.AudioSync
}

// Run executes a job to a terminal state. Errors never escape: they are
// recorded as the job's failure and logged.
func (o *Orchestrator) Run(ctx context.Context, jobID string) {
	job, err := o.store.Job(ctx, jobID)
	if err != nil {
		o.logger.Error("job not found", "job_id", jobID, "error", err)
		return
	}
	if job.Status.Terminal() {
		// Cancelled before a worker picked it up.
		return
	}

	logger := o.logger.With("job_id", jobID)
	rt := &jobRuntime{
		jobID:      jobID,
		sourcePath: job.SourcePath,
		pagesDir:   filepath.Join(o.workDir, jobID, "pages"),
		epubPath:   filepath.Join(o.outDir, jobID+".epub"),
		logger:     logger,
	}
	rt.syncs = loadSyncSidecar(job.SourcePath, logger)
	defer func() {
		if rt.decoder != nil {
			rt.decoder.Close()
		}
	}()

	stages := []stage{
		{structure.StepClassification, o.classifySource},
		{structure.StepTextExtraction, o.extractText},
		{structure.StepLayoutAnalysis, o.analyzeLayout},
		{structure.StepSemanticStructuring, o.structureSemantics},
		{structure.StepAccessibility, o.enrichAccessibility},
		{structure.StepContentCleanup, o.cleanupContent},
		{structure.StepSpecialContent, o.detectSpecialContent},
		{structure.StepEpubGeneration, o.generateEpub},
		{structure.StepQAReview, o.reviewQuality},
	}

	doc := &structure.DocumentStructure{}
	for _, st := range stages {
		// Cooperative cancellation, checked between stages only.
		current, err := o.store.Job(ctx, jobID)
		if err == nil && current.Status == structure.JobCancelled {
			logger.Info("job cancelled, stopping", "step", st.step.String())
			return
		}
		if ctx.Err() != nil {
			o.append(ctx, jobstore.Event{JobID: jobID, Kind: jobstore.EventCancelled})
			return
		}

		o.append(ctx, jobstore.Event{JobID: jobID, Kind: jobstore.EventStepStarted, Step: st.step})
		logger.Info("stage starting", "step", st.step.String())

		next, err := st.run(ctx, rt, doc)
		if err != nil {
			logger.Error("stage failed", "step", st.step.String(), "error", err)
			o.append(ctx, jobstore.Event{
				JobID:   jobID,
				Kind:    jobstore.EventFailed,
				Step:    st.step,
				Message: structure.TruncateError(err.Error()),
			})
			o.discardPartialOutput(rt)
			return
		}
		doc = next

		o.snapshot(ctx, jobID, st.step, doc)
		o.append(ctx, jobstore.Event{JobID: jobID, Kind: jobstore.EventStepCompleted, Step: st.step})
	}

	confidence := documentConfidence(doc)
	o.append(ctx, jobstore.Event{
		JobID:      jobID,
		Kind:       jobstore.EventCompleted,
		EpubPath:   rt.epubPath,
		Confidence: confidence,
	})
	logger.Info("job completed", "epub", rt.epubPath, "confidence", confidence)
}

// append writes a progress event. Persistence failures are logged, never
// propagated: a failed progress write must not crash the job.
func (o *Orchestrator) append(ctx context.Context, ev jobstore.Event) {
	if err := o.store.Append(ctx, ev); err != nil && !errors.Is(err, jobstore.ErrJobTerminal) {
		o.logger.Warn("progress write failed", "job_id", ev.JobID, "kind", ev.Kind, "error", err)
	}
}

func (o *Orchestrator) snapshot(ctx context.Context, jobID string, step structure.Step, doc *structure.DocumentStructure) {
	data, err := doc.MarshalSnapshot()
	if err != nil {
		o.logger.Warn("snapshot marshal failed", "job_id", jobID, "step", step.String(), "error", err)
		return
	}
	if err := o.store.SaveSnapshot(ctx, jobID, step, data); err != nil {
		o.logger.Warn("snapshot write failed", "job_id", jobID, "step", step.String(), "error", err)
	}
}

// discardPartialOutput removes any partially written archive. A failed job
// must not leave an EPUB behind.
func (o *Orchestrator) discardPartialOutput(rt *jobRuntime) {
	if rt.epubPath == "" {
		return
	}
	if err := os.Remove(rt.epubPath); err != nil && !os.IsNotExist(err) {
		rt.logger.Warn("could not remove partial archive", "path", rt.epubPath, "error", err)
	}
}

// loadSyncSidecar reads optional audio timing data supplied next to the
// source document as <name>.sync.json. Relative audio paths resolve
// against the sidecar's directory. A missing sidecar means no narration;
// a malformed one is logged and ignored.
func loadSyncSidecar(sourcePath string, logger *slog.Logger) []structure.AudioSync {
	ext := filepath.Ext(sourcePath)
	path := strings.TrimSuffix(sourcePath, ext) + ".sync.json"
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("could not read sync sidecar", "path", path, "error", err)
		}
		return nil
	}

	var syncs []structure.AudioSync
	if err := json.Unmarshal(data, &syncs); err != nil {
		logger.Warn("malformed sync sidecar, ignoring", "path", path, "error", err)
		return nil
	}
	dir := filepath.Dir(path)
	for i := range syncs {
		if syncs[i].AudioFile != "" && !filepath.IsAbs(syncs[i].AudioFile) {
			syncs[i].AudioFile = filepath.Join(dir, syncs[i].AudioFile)
		}
	}
	logger.Info("loaded audio sync sidecar", "path", path, "entries", len(syncs))
	return syncs
}

// documentConfidence is the mean of every recorded confidence signal: page
// OCR confidences and per-block confidences. With no signals at all the
// document defaults to 0.8.
func documentConfidence(doc *structure.DocumentStructure) float64 {
	sum := 0.0
	n := 0
	for _, page := range doc.Pages {
		if page.OCRConfidence > 0 {
			sum += page.OCRConfidence
			n++
		}
		for _, b := range page.TextBlocks {
			if b.Confidence > 0 {
				sum += b.Confidence
				n++
			}
		}
	}
	if n == 0 {
		return defaultConfidence
	}
	return sum / float64(n)
}

// classifier builds the block classifier for a run. The AI service
// satisfies the external-classifier interface when configured.
func (o *Orchestrator) classifier() *classify.Classifier {
	var external classify.ExternalClassifier
	if o.aiService.Enabled() {
		external = o.aiService
	}
	return classify.New(external, o.logger)
}
