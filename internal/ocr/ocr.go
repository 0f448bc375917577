// Package ocr wraps a pluggable OCR engine with the rate limiting, retry
// and timeout policy the pipeline requires. Results come back as explicit
// outcomes so callers handle the soft-degradation path instead of relying
// on error inspection.
package ocr

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/pagecast/pagecast/internal/ratelimit"
)

// Result is one page's recognized text.
type Result struct {
	Text       string
	Confidence float64 // 0..1 mean word confidence
}

// Engine is the OCR backend. Implementations must be safe for concurrent
// use or construct per-call state internally.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, language string) (*Result, error)
}

// OutcomeKind discriminates the three ways a recognition attempt can end.
type OutcomeKind int

const (
	// OutcomeOK carries a usable result.
	OutcomeOK OutcomeKind = iota
	// OutcomeSoft means this page failed but the job may continue; soft
	// outcomes count toward the consecutive-failure threshold.
	OutcomeSoft
	// OutcomeFatal means recognition cannot continue at all, e.g. the
	// job context was cancelled.
	OutcomeFatal
)

// Outcome is the result of one recognition attempt.
type Outcome struct {
	Kind   OutcomeKind
	Result *Result
	Reason string // set for soft outcomes
	Err    error  // set for fatal outcomes
}

// Ok wraps a successful result.
func Ok(res *Result) Outcome { return Outcome{Kind: OutcomeOK, Result: res} }

// Soft marks a recoverable per-page failure.
func Soft(reason string) Outcome { return Outcome{Kind: OutcomeSoft, Reason: reason} }

// Fatal marks an unrecoverable failure.
func Fatal(err error) Outcome { return Outcome{Kind: OutcomeFatal, Err: err} }

// Options tune the recognizer policy.
type Options struct {
	Language          string
	RequestsPerMinute int
	Timeout           time.Duration
	Attempts          uint
}

func (o *Options) applyDefaults() {
	if o.Language == "" {
		o.Language = "eng"
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Minute
	}
	if o.Attempts == 0 {
		o.Attempts = 2
	}
}

// Recognizer applies the external-service policy around an Engine: a
// token-bucket rate limit, a per-page timeout and bounded retries.
type Recognizer struct {
	engine  Engine
	limiter *ratelimit.Limiter
	opts    Options
	logger  *slog.Logger
}

// NewRecognizer wraps engine with the service policy.
func NewRecognizer(engine Engine, opts Options, logger *slog.Logger) *Recognizer {
	opts.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		engine:  engine,
		limiter: ratelimit.New(opts.RequestsPerMinute),
		opts:    opts,
		logger:  logger.With("engine", engine.Name()),
	}
}

// RecognizePage runs OCR on one page image.
//
// Engine errors and empty zero-confidence results are soft outcomes: the
// caller counts them toward its consecutive-failure threshold but the job
// continues. Only context cancellation is fatal.
func (r *Recognizer) RecognizePage(ctx context.Context, pageNumber int, image []byte) Outcome {
	if err := r.limiter.Wait(ctx); err != nil {
		return Fatal(err)
	}

	var res *Result
	err := retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()

			var err error
			res, err = r.engine.Recognize(attemptCtx, image, r.opts.Language)
			return err
		},
		retry.Attempts(r.opts.Attempts),
		retry.Context(ctx),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn("ocr attempt failed, retrying",
				"page", pageNumber,
				"attempt", n+1,
				"error", err)
		}),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return Fatal(err)
		}
		r.logger.Warn("ocr failed for page", "page", pageNumber, "error", err)
		return Soft(err.Error())
	}

	if res == nil || (strings.TrimSpace(res.Text) == "" && res.Confidence == 0) {
		r.logger.Warn("ocr produced no text", "page", pageNumber)
		return Soft("empty result with zero confidence")
	}
	return Ok(res)
}

// LimiterStats exposes the rate limiter state for status reporting.
func (r *Recognizer) LimiterStats() ratelimit.Status {
	return r.limiter.Stats()
}
