package tcp

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffPolicy configures how connection attempts to a peer are retried:
// exponential backoff with jitter, bounded by a number of attempts and a
// deadline. Zero MaxAttempts or MaxElapsedTime means no bound on that axis;
// both zero retries forever.
type BackoffPolicy struct {
	InitialInterval     time.Duration `yaml:"initial_interval"`
	MaxInterval         time.Duration `yaml:"max_interval"`
	Multiplier          float64       `yaml:"multiplier"`
	RandomizationFactor float64       `yaml:"randomization_factor"`
	MaxElapsedTime      time.Duration `yaml:"max_elapsed_time"`
	MaxAttempts         uint64        `yaml:"max_attempts"`
}

// DefaultBackoffPolicy returns the policy used when none is configured. Peers
// of a run are usually started by hand, so it waits for up to two minutes.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         4 * time.Second,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      2 * time.Minute,
	}
}

func (p BackoffPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	if p.RandomizationFactor >= 0 && p.RandomizationFactor <= 1 {
		b.RandomizationFactor = p.RandomizationFactor
	}
	b.MaxElapsedTime = p.MaxElapsedTime
	b.Reset()

	var bo backoff.BackOff = b
	if p.MaxAttempts > 0 {
		// WithMaxRetries counts retries, the first attempt is not one
		bo = backoff.WithMaxRetries(bo, p.MaxAttempts-1)
	}
	return backoff.WithContext(bo, ctx)
}
