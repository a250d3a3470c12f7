package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyWorkOrderID = "work_order_id"
	KeyJobID       = "job_id"
	KeyJobKind     = "job_kind"
	KeyReason      = "reason"
	KeyOutcome     = "outcome"
	KeyAttempts    = "attempts"
	KeyState       = "state"
	KeyMinutes     = "minutes"
	KeyCount       = "count"
	KeyDurationMS  = "duration_ms"
	KeyField       = "field"
	KeyPath        = "path"
	KeySubject     = "subject"
	KeyMethod      = "method"
	KeyURL         = "url"
	KeyStatus      = "status"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func WorkOrderID(id string) slog.Attr { return slog.String(KeyWorkOrderID, id) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func JobKind(k string) slog.Attr      { return slog.String(KeyJobKind, k) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Attempts(n int) slog.Attr        { return slog.Int(KeyAttempts, n) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Minutes(m int) slog.Attr         { return slog.Int(KeyMinutes, m) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Field(f string) slog.Attr        { return slog.String(KeyField, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
