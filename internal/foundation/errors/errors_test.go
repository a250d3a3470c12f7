package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "wodesk.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}

		file, exists := err.Context().GetString("file")
		if !exists || file != "wodesk.yaml" {
			t.Errorf("expected context file=wodesk.yaml, got %v", file)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ConfigError("test error").Build()

		if !IsClassified(err) {
			t.Error("expected error to be classified")
		}
		if !HasCategory(err, CategoryConfig) {
			t.Error("expected error to have config category")
		}
		if err.CanRetry() {
			t.Error("expected config error to not be retryable")
		}
		if !err.IsFatal() {
			t.Error("expected config error to be fatal")
		}
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		inner := ValidationError("duration must not be negative").Build()
		wrapped := fmt.Errorf("apply state: %w", inner)

		if GetCategory(wrapped) != CategoryValidation {
			t.Errorf("expected validation category, got %s", GetCategory(wrapped))
		}
		if !errors.Is(wrapped, ValidationError("duration must not be negative").Build()) {
			t.Error("expected errors.Is to match on category and message")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	originalErr := errors.New("connection reset")
	err := RemoteError("update state failed").
		WithCause(originalErr).
		WithContext("work_order_id", "WO-1").
		Build()

	if err.RetryStrategy() != RetryBackoff {
		t.Errorf("expected retry strategy %s, got %s", RetryBackoff, err.RetryStrategy())
	}
	if !err.IsTransient() {
		t.Error("expected remote error to be transient")
	}
	if !errors.Is(err, originalErr) {
		t.Error("expected error to wrap original error")
	}
	want := "[remote:error] update state failed: connection reset"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWithContextDoesNotMutateOriginal(t *testing.T) {
	base := JournalError("append failed").Build()
	derived := base.WithContext("job_id", "abc")

	if _, ok := base.Context().Get("job_id"); ok {
		t.Error("original error context was mutated")
	}
	if v, _ := derived.Context().GetString("job_id"); v != "abc" {
		t.Errorf("expected job_id=abc, got %q", v)
	}
}

func TestUnclassifiedDefaults(t *testing.T) {
	err := errors.New("plain")
	if GetCategory(err) != CategoryInternal {
		t.Errorf("expected internal category, got %s", GetCategory(err))
	}
	if GetRetryStrategy(err) != RetryNever {
		t.Errorf("expected never retry, got %s", GetRetryStrategy(err))
	}
}
