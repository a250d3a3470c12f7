package errors

import (
	"errors"
	"log/slog"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation error", err: ValidationError("bad duration").Build(), expected: 2},
		{name: "auth error", err: AuthError("unauthorized").Build(), expected: 5},
		{name: "config error", err: ConfigError("bad config").Build(), expected: 7},
		{name: "remote error", err: RemoteError("sccd down").Build(), expected: 8},
		{name: "journal error", err: JournalError("disk full").Build(), expected: 11},
		{name: "dispatcher error", err: DispatcherError("stopped").Build(), expected: 12},
		{name: "unclassified error", err: errors.New("unknown error"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())

	internal := InternalError("invariant broken").Build()
	if got := quiet.FormatError(internal); got != "Internal error occurred (use -v for details)" {
		t.Errorf("unexpected quiet message: %q", got)
	}
	if got := verbose.FormatError(internal); got != "Error: [internal:fatal] invariant broken" {
		t.Errorf("unexpected verbose message: %q", got)
	}

	cfg := ConfigError("remote.base_url is required").Build()
	if got := quiet.FormatError(cfg); got != "Error: [config:fatal] remote.base_url is required" {
		t.Errorf("unexpected config message: %q", got)
	}
	if got := quiet.FormatError(errors.New("boom")); got != "Error: boom" {
		t.Errorf("unexpected unclassified message: %q", got)
	}
}
