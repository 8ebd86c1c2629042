package remote

import (
	"context"
	"errors"
	"log/slog"

	"github.com/scriptotek/slipsomat/internal/letter"
)

// RetryPolicy bounds how often a read operation is attempted. Only
// ErrTimeout is retried.
type RetryPolicy struct {
	MaxAttempts int
	Logger      *slog.Logger
}

// DefaultRetry tries a read twice.
var DefaultRetry = RetryPolicy{MaxAttempts: 2}

// NoRetry tries once.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Do runs op until it succeeds, fails with a non-timeout error, or the
// attempts are used up.
func (p RetryPolicy) Do(ctx context.Context, what string, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = op(ctx)
		if err == nil || !errors.Is(err, ErrTimeout) {
			return err
		}
		if i < attempts && p.Logger != nil {
			p.Logger.Warn("retrying after timeout", "op", what, "attempt", i, "error", err)
		}
	}
	return err
}

// Retrying wraps src so that List, Fetch and FetchDefault follow policy.
// Submit is passed through unchanged.
func Retrying(src Source, policy RetryPolicy) Source {
	return &retrying{src: src, policy: policy}
}

type retrying struct {
	src    Source
	policy RetryPolicy
}

var _ Source = (*retrying)(nil)

func (r *retrying) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := r.policy.Do(ctx, "list", func(ctx context.Context) error {
		var err error
		entries, err = r.src.List(ctx)
		return err
	})
	return entries, err
}

func (r *retrying) Fetch(ctx context.Context, filename string) (letter.Content, error) {
	var c letter.Content
	err := r.policy.Do(ctx, "fetch "+filename, func(ctx context.Context) error {
		var err error
		c, err = r.src.Fetch(ctx, filename)
		return err
	})
	return c, err
}

func (r *retrying) FetchDefault(ctx context.Context, filename string) (letter.Content, error) {
	var c letter.Content
	err := r.policy.Do(ctx, "fetch default "+filename, func(ctx context.Context) error {
		var err error
		c, err = r.src.FetchDefault(ctx, filename)
		return err
	})
	return c, err
}

func (r *retrying) Submit(ctx context.Context, filename string, content letter.Content) error {
	return r.src.Submit(ctx, filename, content)
}
