package task

import (
	"context"
	"time"

	"github.com/GitRadiation/template-filler/internal/domain"
)

// Class is the retry classification of a failure.
type Class int

const (
	// Permanent failures are never re-attempted: unsupported template,
	// malformed input, template evaluation errors.
	Permanent Class = iota

	// Transient failures (broker hiccup, storage I/O, converter process
	// faults) may be re-attempted within the policy bounds.
	Transient
)

// RetryPolicy bounds the automatic in-task re-execution of a failed render.
// It is consulted explicitly by the task runner; there is no retry behavior
// anywhere else.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Classify    func(error) Class
}

// DefaultPolicy mirrors the queue defaults: 3 attempts, 60s apart.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       60 * time.Second,
		Classify:    DefaultClassify,
	}
}

// DefaultClassify treats errors carrying the domain transient marker as
// retryable and everything else as permanent.
func DefaultClassify(err error) Class {
	if domain.IsTransient(err) {
		return Transient
	}
	return Permanent
}

// ShouldRetry reports whether another attempt is allowed after a failure on
// the given attempt number (1-based).
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	classify := p.Classify
	if classify == nil {
		classify = DefaultClassify
	}
	return classify(err) == Transient
}

// Wait sleeps for the retry delay or until ctx is done, whichever comes
// first. Returns the ctx error when cancelled.
func (p RetryPolicy) Wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
