package provider

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aspendos/council/internal/models"
)

// ErrorKind classifies a provider failure. The mapping to retry and
// health-tracking behavior is fixed; adapters only decide the kind.
type ErrorKind string

const (
	// KindRateLimited: retryable, triggers fallback.
	KindRateLimited ErrorKind = "rate_limited"
	// KindContextTooLong: not retryable in place; fallback is useful
	// only if the next model has a larger context window.
	KindContextTooLong ErrorKind = "context_too_long"
	// KindUnavailable: retryable, counts against provider health.
	KindUnavailable ErrorKind = "unavailable"
	// KindTimeout: retryable, counts against provider health.
	KindTimeout ErrorKind = "timeout"
	// KindConfig: fatal and the system's fault; must not penalize
	// provider health.
	KindConfig ErrorKind = "config"
	// KindCanceled: the caller aborted the call; not a provider outcome.
	KindCanceled ErrorKind = "canceled"
	// KindUnknown: treated as retryable by default.
	KindUnknown ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind should advance the
// fallback chain.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindUnavailable, KindTimeout, KindUnknown:
		return true
	}
	return false
}

// FeedsBreaker reports whether a failure of this kind counts as a
// provider outcome for health tracking.
func (k ErrorKind) FeedsBreaker() bool {
	switch k {
	case KindConfig, KindCanceled:
		return false
	}
	return true
}

// Code maps an error kind to the assignment-level error code.
func (k ErrorKind) Code() models.ErrorCode {
	switch k {
	case KindRateLimited:
		return models.ErrCodeRateLimited
	case KindContextTooLong:
		return models.ErrCodeContextTooLong
	case KindUnavailable:
		return models.ErrCodeUnavailable
	case KindTimeout:
		return models.ErrCodeTimeout
	case KindConfig:
		return models.ErrCodeConfig
	case KindCanceled:
		return models.ErrCodeCanceled
	}
	return models.ErrCodeUnknown
}

// Error is a classified provider failure.
type Error struct {
	Kind     ErrorKind
	Provider string
	Model    string
	Status   int
	Message  string
	wrapped  error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%s, status %d)", e.Provider, e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Kind)
}

func (e *Error) Unwrap() error { return e.wrapped }

// NewError builds a classified provider error.
func NewError(kind ErrorKind, providerName, model, message string) *Error {
	return &Error{Kind: kind, Provider: providerName, Model: model, Message: message}
}

// AsError extracts the classified form of err, classifying generic
// transport and context errors when the adapter did not.
func AsError(err error, providerName, model string) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	kind := KindUnknown
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	default:
		var nerr net.Error
		if errors.As(err, &nerr) {
			if nerr.Timeout() {
				kind = KindTimeout
			} else {
				kind = KindUnavailable
			}
		}
	}

	return &Error{
		Kind:     kind,
		Provider: providerName,
		Model:    model,
		Message:  err.Error(),
		wrapped:  err,
	}
}
