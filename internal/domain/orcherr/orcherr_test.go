package orcherr_test

import (
	"errors"
	"testing"

	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := orcherr.New(orcherr.KindNotFound, "agent xyz not found")
	if !errors.Is(err, orcherr.ErrNotFound) {
		t.Fatal("expected errors.Is to match the sentinel by kind")
	}
	if errors.Is(err, orcherr.ErrValidation) {
		t.Fatal("expected errors.Is not to match a different kind's sentinel")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	wrapped := orcherr.Wrap(orcherr.KindAgent, "dispatch failed", cause)

	if !errors.Is(wrapped, orcherr.ErrAgent) {
		t.Fatal("expected wrapped error to match its kind's sentinel")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatal("expected errors.Is to see through to the wrapped cause")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Fatal("expected Unwrap to return the original cause")
	}
}

func TestWrapRetryableSetsFlag(t *testing.T) {
	err := orcherr.WrapRetryable(orcherr.KindTimeout, "bus request timed out", errors.New("deadline exceeded"))
	var oe *orcherr.Error
	if !errors.As(err, &oe) {
		t.Fatal("expected errors.As to recover the concrete *orcherr.Error")
	}
	if !oe.Retryable {
		t.Fatal("expected Retryable to be true")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("boom")
	err := orcherr.Wrap(orcherr.KindBus, "publish failed", cause)
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected a non-empty error message")
	}
}
