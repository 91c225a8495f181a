package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coverbridge/coverbridge/internal/observability"
)

// ErrTimeout is returned when the extension never delivered a result
// within the wait bound. Callers distinguish this from a result whose
// payload reports an extension-side failure.
var ErrTimeout = errors.New("rendezvous: no response before timeout")

// Rendezvous bridges blocking tool adapters with the asynchronous
// dispatcher that forwards actions to the browser extension. An adapter
// submits an action and blocks on its correlation token; the bridge
// delivers the extension's reply (or the wait times out).
type Rendezvous struct {
	store   *Store
	queue   *Queue
	logger  *observability.Logger
	metrics *observability.Metrics

	defaultTimeout time.Duration
}

// Config holds rendezvous construction options.
type Config struct {
	// DefaultTimeout bounds Submit calls that pass no explicit timeout.
	DefaultTimeout time.Duration

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// New creates a rendezvous with its own correlation store and queue.
func New(cfg Config) *Rendezvous {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{Level: "error"})
	}
	return &Rendezvous{
		store:          NewStore(),
		queue:          NewQueue(),
		logger:         cfg.Logger.WithFields("component", "rendezvous"),
		metrics:        cfg.Metrics,
		defaultTimeout: cfg.DefaultTimeout,
	}
}

// Submit enqueues a browser action and blocks until the extension
// delivers a result, the timeout elapses, or ctx is cancelled. A zero
// timeout uses the configured default.
//
// On timeout the token is expired and ErrTimeout is returned; a late
// result for it is dropped with a warning.
func (r *Rendezvous) Submit(ctx context.Context, kind string, parameters map[string]any, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	token := uuid.NewString()
	waiter, err := r.store.Register(token)
	if err != nil {
		return nil, err
	}

	r.queue.Push(&PendingAction{
		ID:         token,
		Kind:       kind,
		Parameters: parameters,
		CreatedAt:  time.Now(),
	})
	if r.metrics != nil {
		r.metrics.QueueDepth.Set(float64(r.queue.Len()))
	}
	r.logger.Debug(ctx, "action submitted", "token", token, "kind", kind)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-waiter:
		payload, ok := r.store.TakeResult(token)
		if !ok {
			// Signal stores the payload before waking the waiter, so a
			// missing result here is a bug, not a race.
			return nil, fmt.Errorf("rendezvous: result missing for token %s", token)
		}
		r.recordOutcome(kind, "delivered")
		return payload, nil

	case <-timer.C:
		r.store.Expire(token)
		r.recordOutcome(kind, "timeout")
		r.logger.Warn(ctx, "action timed out", "token", token, "kind", kind, "timeout", timeout)
		return nil, fmt.Errorf("%w (kind=%s, waited %s)", ErrTimeout, kind, timeout)

	case <-ctx.Done():
		r.store.Expire(token)
		r.recordOutcome(kind, "cancelled")
		return nil, ctx.Err()
	}
}

// Prepare registers a waiter for a caller-generated token and returns
// the handle to pass to WaitPrepared. Used for approval round-trips,
// where the bridge sends its own envelope instead of going through the
// dispatch queue. Registration before send guarantees a fast reply
// cannot race past the waiter.
func (r *Rendezvous) Prepare(token string) (<-chan struct{}, error) {
	return r.store.Register(token)
}

// WaitPrepared blocks on a waiter returned by Prepare.
func (r *Rendezvous) WaitPrepared(ctx context.Context, token string, waiter <-chan struct{}, timeout time.Duration) (map[string]any, error) {
	return r.waitOn(ctx, token, waiter, timeout)
}

func (r *Rendezvous) waitOn(ctx context.Context, token string, waiter <-chan struct{}, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-waiter:
		payload, ok := r.store.TakeResult(token)
		if !ok {
			return nil, fmt.Errorf("rendezvous: result missing for token %s", token)
		}
		return payload, nil
	case <-timer.C:
		r.store.Expire(token)
		return nil, fmt.Errorf("%w (waited %s)", ErrTimeout, timeout)
	case <-ctx.Done():
		r.store.Expire(token)
		return nil, ctx.Err()
	}
}

// Deliver routes an extension reply to the waiter registered for the
// token. A reply for an unknown or expired token is dropped with a
// warning; delivery and expiry race, whichever wins, the loser is a
// no-op.
func (r *Rendezvous) Deliver(token string, payload map[string]any) bool {
	if r.store.Signal(token, payload) {
		return true
	}
	r.logger.Warn(context.Background(), "result for unknown or expired token dropped", "token", token)
	if r.metrics != nil {
		r.metrics.LateResults.Inc()
	}
	return false
}

// Next hands the dispatcher the oldest pending action, blocking until
// one is available or ctx is cancelled.
func (r *Rendezvous) Next(ctx context.Context) (*PendingAction, error) {
	action, err := r.queue.Next(ctx)
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.QueueDepth.Set(float64(r.queue.Len()))
	}
	return action, nil
}

// QueueDepth returns the number of actions awaiting dispatch.
func (r *Rendezvous) QueueDepth() int {
	return r.queue.Len()
}

// LiveTokens returns the tokens currently blocked on a reply.
func (r *Rendezvous) LiveTokens() []string {
	return r.store.Tokens()
}

// Store exposes the correlation store for tests.
func (r *Rendezvous) Store() *Store {
	return r.store
}

func (r *Rendezvous) recordOutcome(kind, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordActionSubmission(kind, outcome)
	}
}
