package errors

import (
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: http.StatusOK},
		{name: "validation error", err: ValidationError("no work orders selected").Build(), expected: http.StatusBadRequest},
		{name: "auth error", err: AuthError("unauthorized").Build(), expected: http.StatusUnauthorized},
		{name: "not found", err: NewError(CategoryNotFound, "unknown field").Build(), expected: http.StatusNotFound},
		{name: "remote error", err: RemoteError("list failed").Build(), expected: http.StatusBadGateway},
		{name: "runtime error", err: RuntimeError("loop stopped").Build(), expected: http.StatusServiceUnavailable},
		{name: "unclassified error", err: stdErrors.New("unknown error"), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.StatusCodeFor(tt.err); got != tt.expected {
				t.Errorf("StatusCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())
	req := httptest.NewRequest(http.MethodPost, "/api/workorders/state", nil)
	rec := httptest.NewRecorder()

	err := ValidationError("duration must not be negative").
		WithContext("minutes", -5).
		Build()
	adapter.WriteErrorResponse(rec, req, err)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}

	var body HTTPErrorResponse
	if jerr := json.Unmarshal(rec.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("decode: %v", jerr)
	}
	if body.Error != "duration must not be negative" || body.Code != "validation" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Details["minutes"] != float64(-5) {
		t.Fatalf("expected minutes detail, got %+v", body.Details)
	}
	if body.Retryable {
		t.Fatal("validation errors must not be retryable")
	}
}
