package llm

import (
	"context"
	"errors"
	"time"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/contracts"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// retryingDriver wraps a driver with a bounded exponential backoff. Rate
// limited calls stop immediately: retrying into a 429 only digs the hole
// deeper within a single chat request's deadline.
type retryingDriver struct {
	inner       contracts.ModelDriver
	maxAttempts int
}

// WithRetry wraps the driver with the retry policy. maxAttempts counts
// the first try.
func WithRetry(inner contracts.ModelDriver, maxAttempts int) contracts.ModelDriver {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryingDriver{inner: inner, maxAttempts: maxAttempts}
}

func (d *retryingDriver) Kind() string { return d.inner.Kind() }

func (d *retryingDriver) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 300 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	var resp *models.GenerateResponse
	attempt := 0
	operation := func() error {
		attempt++
		r, err := d.inner.Generate(ctx, req)
		if err != nil {
			var rme *models.RemoteModelError
			if errors.As(err, &rme) && rme.RateLimit {
				return backoff.Permanent(err)
			}
			log.Warn().
				Err(err).
				Str("provider", d.inner.Kind()).
				Int("attempt", attempt).
				Msg("Remote model call failed")
			return err
		}
		resp = r
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(d.maxAttempts-1)), ctx))
	if err != nil {
		var rme *models.RemoteModelError
		if errors.As(err, &rme) {
			return nil, rme
		}
		return nil, wrapErr(d.inner.Kind(), err)
	}
	return resp, nil
}

func (d *retryingDriver) HealthCheck(ctx context.Context) error {
	return d.inner.HealthCheck(ctx)
}
