// Package errors provides the classified error primitives used across wodesk.
//
// Key features:
//   - ErrorCategory: broad classification (validation, remote, journal, ...)
//   - ErrorSeverity: impact level
//   - RetryStrategy: whether the dispatcher's retry layer may try again
//   - ErrorBuilder: fluent API for creating classified errors
//   - HTTP and CLI adapters for error presentation
//
// Example usage:
//
//	err := errors.RemoteError("update state failed").
//		WithContext("work_order_id", id).
//		WithCause(originalErr).
//		Build()
package errors
