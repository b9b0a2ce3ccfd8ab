// Package resilient wraps remote calls with session checks, failure
// classification, bounded retries for transient network failures and
// one-shot user notifications per retry key.
package resilient

import (
	"context"
	"errors"
	"time"

	"procurement/internal/apperr"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// SessionStore is the part of the auth store the wrapper needs.
type SessionStore interface {
	Token() string
	Clear()
}

type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{MaxRetries: 2, BaseDelay: time.Second}
}

// Caller executes remote operations on behalf of one session.
type Caller struct {
	session  SessionStore
	notifier Notifier
	dedup    *DedupCache
	cfg      Config
	log      *zap.Logger
	onRetry  func(key string, attempt int, delay time.Duration)
}

type Option func(*Caller)

func WithConfig(cfg Config) Option {
	return func(c *Caller) { c.cfg = cfg }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Caller) { c.log = log }
}

// WithRetryObserver is called before each retry wait.
func WithRetryObserver(fn func(key string, attempt int, delay time.Duration)) Option {
	return func(c *Caller) { c.onRetry = fn }
}

func NewCaller(session SessionStore, notifier Notifier, dedup *DedupCache, opts ...Option) *Caller {
	c := &Caller{
		session:  session,
		notifier: notifier,
		dedup:    dedup,
		cfg:      DefaultConfig(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dedup == nil {
		c.dedup = NewDedupCache()
	}
	return c
}

type callOptions struct {
	retryKey   string
	maxRetries int
}

type CallOption func(*callOptions)

// WithRetryKey groups calls for retry accounting and notification dedup.
// Without a key a call is never retried.
func WithRetryKey(key string) CallOption {
	return func(o *callOptions) { o.retryKey = key }
}

func WithMaxRetries(n int) CallOption {
	return func(o *callOptions) {
		if n < 0 {
			n = 0
		}
		o.maxRetries = n
	}
}

// Call runs op with the caller's policy. errCtx names the operation in
// errors and notifications, and doubles as the dedup key when no retry key is given.
func Call[T any](ctx context.Context, c *Caller, op func(ctx context.Context) (T, error), errCtx string, opts ...CallOption) (T, error) {
	o := callOptions{maxRetries: c.cfg.MaxRetries}
	for _, opt := range opts {
		opt(&o)
	}
	key := o.retryKey
	if key == "" {
		key = errCtx
	}

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if c.session.Token() == "" {
		err := apperr.New(apperr.AuthenticationRequired, errCtx, "session expired, please sign in again")
		c.report(ctx, key, err, true)
		return zero, err
	}

	var result T
	err := retry.Do(ctx, c.backoff(key, o), func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Aborted by the caller: must not spend a retry on this key.
				return err
			}
			classified := apperr.Classify(errCtx, err)
			if classified.Temporary() && o.retryKey != "" {
				return retry.RetryableError(classified)
			}
			return classified
		}
		result = v
		return nil
	})

	if err == nil {
		c.dedup.Reset(key)
		return result, nil
	}

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		c.log.Debug("call aborted by caller", zap.String("op", errCtx), zap.String("key", key))
		return zero, err
	}

	classified := apperr.Classify(errCtx, err)
	if classified.Kind == apperr.AuthenticationRequired {
		c.session.Clear()
		c.report(ctx, key, classified, true)
		return zero, classified
	}

	c.report(ctx, key, classified, false)
	return zero, classified
}

// Report surfaces err once per key and kind. The executor uses it for
// notices that do not come from a remote call.
func (c *Caller) Report(ctx context.Context, key string, err *apperr.Error) {
	c.report(ctx, key, err, false)
}

// Dedup exposes the cache the caller accounts into.
func (c *Caller) Dedup() *DedupCache {
	return c.dedup
}

func (c *Caller) report(ctx context.Context, key string, err *apperr.Error, redirect bool) {
	if !c.dedup.MarkNotified(key, err.Kind) {
		c.log.Debug("notification suppressed",
			zap.String("key", key),
			zap.String("kind", err.Kind.String()))
		return
	}

	c.notifier.Notify(ctx, Notification{
		Kind:     err.Kind,
		Key:      key,
		Context:  err.Op,
		Message:  userMessage(err),
		Redirect: redirect,
	})
}

func (c *Caller) backoff(key string, o callOptions) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		spent, ok := c.dedup.nextAttempt(key, o.maxRetries)
		if !ok {
			c.log.Warn("retries exhausted", zap.String("key", key), zap.Int("attempts", spent))
			return 0, true
		}

		delay := backoffDelay(c.cfg.BaseDelay, spent)
		c.log.Info("retrying after transient failure",
			zap.String("key", key),
			zap.Int("attempt", spent+1),
			zap.Duration("delay", delay))
		if c.onRetry != nil {
			c.onRetry(key, spent+1, delay)
		}
		return delay, false
	})
}

// backoffDelay is base·2^spent: 1s, 2s, 4s for a one-second base.
func backoffDelay(base time.Duration, spent int) time.Duration {
	return base << uint(spent)
}

func userMessage(err *apperr.Error) string {
	switch err.Kind {
	case apperr.AuthenticationRequired:
		return "Your session has expired. Please sign in again."
	case apperr.ServerUnavailable:
		return err.Op + ": the server is unavailable, please try again later"
	case apperr.NetworkTransient:
		return err.Op + ": network error, please check your connection"
	default:
		return err.Error()
	}
}
