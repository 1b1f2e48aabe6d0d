// Package ratelimit centralizes the rate-limited outbound HTTP shape shared
// by the Snapshot and Discourse indexers: a bounded job queue drained by a
// fixed worker pool, a token-bucket limiter for steady-state pacing
// (adapted from the gateway rate limiter idiom), and a remaining/reset
// tracker that reacts to server-reported rate limit headers.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config controls dispatcher sizing and backoff behavior.
type Config struct {
	QueueSize       int
	Concurrency     int
	RequestsPerSec  float64
	Burst           int
	MaxAttempts     int
	RemainingFloor  int64
	ResetBuffer     time.Duration
	Logger          *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = 5
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RemainingFloor <= 0 {
		c.RemainingFloor = 30
	}
	if c.ResetBuffer <= 0 {
		c.ResetBuffer = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Dispatcher is a process-wide, bounded-concurrency outbound request queue.
type Dispatcher struct {
	cfg     Config
	limiter *rate.Limiter
	queue   chan job

	mu       sync.Mutex
	resetAt  time.Time
	remaining int64

	wg     sync.WaitGroup
	closed chan struct{}
}

type job struct {
	ctx    context.Context
	do     func(ctx context.Context) (*http.Response, error)
	result chan<- jobResult
}

type jobResult struct {
	resp *http.Response
	err  error
}

// NewDispatcher starts the worker pool and returns a ready Dispatcher.
// Callers should invoke Close when the process is shutting down so pending
// jobs drain without starting new work.
func NewDispatcher(cfg Config) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		queue:     make(chan job, cfg.QueueSize),
		remaining: int64(cfg.RemainingFloor) + 1,
		closed:    make(chan struct{}),
	}
	for i := 0; i < cfg.Concurrency; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Close stops accepting new jobs and waits for in-flight workers to drain.
func (d *Dispatcher) Close() {
	select {
	case <-d.closed:
		return
	default:
		close(d.closed)
	}
	close(d.queue)
	d.wg.Wait()
}

// Do submits a request-producing function to the dispatcher and blocks until
// it completes, the queue is closed, or ctx is cancelled. The function is
// retried with exponential backoff on transient errors, 5xx responses, and
// honors Retry-After on 429 responses, up to MaxAttempts.
func (d *Dispatcher) Do(ctx context.Context, do func(ctx context.Context) (*http.Response, error)) (*http.Response, error) {
	resultCh := make(chan jobResult, 1)
	j := job{ctx: ctx, do: do, result: resultCh}
	select {
	case d.queue <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.closed:
		return nil, context.Canceled
	}
	select {
	case res := <-resultCh:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.waitForCapacity(j.ctx)
		resp, err := d.attempt(j.ctx, j.do)
		j.result <- jobResult{resp: resp, err: err}
	}
}

// waitForCapacity blocks until the token bucket allows another request and
// the server-reported remaining-quota floor has not been breached.
func (d *Dispatcher) waitForCapacity(ctx context.Context) {
	d.mu.Lock()
	remaining := d.remaining
	resetAt := d.resetAt
	d.mu.Unlock()

	if remaining <= d.cfg.RemainingFloor && !resetAt.IsZero() {
		wait := time.Until(resetAt.Add(d.cfg.ResetBuffer))
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}
	}
	_ = d.limiter.Wait(ctx)
}

func (d *Dispatcher) attempt(ctx context.Context, do func(ctx context.Context) (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		resp, err := do(ctx)
		if err != nil {
			lastErr = err
			d.sleepBackoff(ctx, attempt)
			continue
		}
		d.updateRateState(resp)
		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			if wait <= 0 {
				wait = backoffDuration(attempt)
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = httpStatusError(resp.StatusCode)
			d.sleepBackoff(ctx, attempt)
			continue
		}
		return resp, nil
	}
	if lastErr == nil {
		lastErr = context.DeadlineExceeded
	}
	return nil, lastErr
}

func (d *Dispatcher) sleepBackoff(ctx context.Context, attempt int) {
	select {
	case <-time.After(backoffDuration(attempt)):
	case <-ctx.Done():
	}
}

// updateRateState records ratelimit-remaining/ratelimit-reset headers.
func (d *Dispatcher) updateRateState(resp *http.Response) {
	remaining := resp.Header.Get("ratelimit-remaining")
	reset := resp.Header.Get("ratelimit-reset")
	if remaining == "" && reset == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if remaining != "" {
		if v, err := strconv.ParseInt(remaining, 10, 64); err == nil {
			d.remaining = v
		}
	}
	if reset != "" {
		if secs, err := strconv.ParseInt(reset, 10, 64); err == nil {
			d.resetAt = time.Unix(secs, 0)
		} else if ts, err := time.Parse(time.RFC1123, reset); err == nil {
			d.resetAt = ts
		}
	}
}

// backoffDuration implements the shared exponential backoff idiom: base
// 1s doubled per attempt, capped at 1 minute.
func backoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	d := time.Second * time.Duration(1<<uint(attempt-1))
	if d > time.Minute {
		return time.Minute
	}
	return d
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		return time.Until(ts)
	}
	return 0
}

type httpStatusErr struct{ code int }

func httpStatusError(code int) error { return &httpStatusErr{code: code} }
func (e *httpStatusErr) Error() string {
	return "http status " + strconv.Itoa(e.code)
}
