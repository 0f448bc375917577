// Package ratelimit provides a token-bucket limiter shared by the OCR
// engine and the AI correction service.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements a token bucket over a one-minute window.
type Limiter struct {
	mu sync.Mutex

	requestsPerMinute int
	windowSeconds     float64

	tokens     float64
	lastUpdate time.Time

	totalConsumed int64
	totalWaited   time.Duration
	lastRejected  time.Time
}

// Status reports current limiter state.
type Status struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	Utilization     float64       `json:"utilization"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	LastRejected    time.Time     `json:"last_rejected,omitempty"`
}

// New creates a limiter allowing requestsPerMinute requests.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 150
	}
	return &Limiter{
		requestsPerMinute: requestsPerMinute,
		windowSeconds:     60.0,
		tokens:            float64(requestsPerMinute),
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()

		if l.tokens >= 1.0 {
			l.tokens--
			l.totalConsumed++
			l.mu.Unlock()
			return nil
		}

		tokensNeeded := 1.0 - l.tokens
		refillRate := float64(l.requestsPerMinute) / l.windowSeconds
		waitTime := time.Duration(tokensNeeded/refillRate*1000) * time.Millisecond
		l.mu.Unlock()

		// Wait outside the lock.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			l.mu.Lock()
			l.totalWaited += waitTime
			l.mu.Unlock()
		}
	}
}

// TryConsume attempts to consume a token without blocking.
// Returns true if successful, false if no tokens are available.
func (l *Limiter) TryConsume() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= 1.0 {
		l.tokens--
		l.totalConsumed++
		return true
	}
	l.lastRejected = time.Now()
	return false
}

// Backoff drains all tokens after an upstream throttle response.
func (l *Limiter) Backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastRejected = time.Now()
	l.tokens = 0
}

// Stats returns current limiter status.
func (l *Limiter) Stats() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	utilization := 1.0 - (l.tokens / float64(l.requestsPerMinute))
	if utilization < 0 {
		utilization = 0
	}

	var timeUntilToken time.Duration
	if l.tokens < 1.0 {
		tokensNeeded := 1.0 - l.tokens
		refillRate := float64(l.requestsPerMinute) / l.windowSeconds
		timeUntilToken = time.Duration(tokensNeeded/refillRate*1000) * time.Millisecond
	}

	return Status{
		TokensAvailable: int(l.tokens),
		TokensLimit:     l.requestsPerMinute,
		Utilization:     utilization,
		TimeUntilToken:  timeUntilToken,
		TotalConsumed:   l.totalConsumed,
		TotalWaited:     l.totalWaited,
		LastRejected:    l.lastRejected,
	}
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	refillRate := float64(l.requestsPerMinute) / l.windowSeconds
	l.tokens += elapsed * refillRate

	if l.tokens > float64(l.requestsPerMinute) {
		l.tokens = float64(l.requestsPerMinute)
	}
}
