package noderpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// ErrorKind is the transport-level classification of a failed call.
type ErrorKind string

const (
	KindConnectionRefused ErrorKind = "connection_refused"
	KindTimeout           ErrorKind = "timeout"
	KindHTTPError         ErrorKind = "http_error"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindRPCError          ErrorKind = "rpc_error"
	KindAmbiguousOutcome  ErrorKind = "ambiguous_outcome"
	KindCanceled          ErrorKind = "canceled"
	KindInvalidRequest    ErrorKind = "invalid_request"
)

// Category is the coarse taxonomy callers branch on.
type Category string

const (
	CategoryUnreachable      Category = "unreachable"
	CategoryTimeout          Category = "timeout"
	CategoryProtocolError    Category = "protocol_error"
	CategoryAmbiguousOutcome Category = "ambiguous_outcome"
)

// CallError describes why a call failed.
type CallError struct {
	Kind    ErrorKind `json:"kind"`
	Status  int       `json:"status,omitempty"` // HTTP status for KindHTTPError, JSON-RPC code for KindRPCError
	Message string    `json:"message"`
	// Sent is true once the full request was written to the connection.
	Sent bool `json:"sent"`
	err  error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case KindHTTPError:
		return fmt.Sprintf("%s(%d): %s", e.Kind, e.Status, e.Message)
	case KindRPCError:
		return fmt.Sprintf("%s(code %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CallError) Unwrap() error { return e.err }

// Category maps the kind onto the caller-facing taxonomy.
func (e *CallError) Category() Category {
	switch e.Kind {
	case KindConnectionRefused:
		return CategoryUnreachable
	case KindTimeout, KindCanceled:
		return CategoryTimeout
	case KindAmbiguousOutcome:
		return CategoryAmbiguousOutcome
	case KindHTTPError:
		if e.Status >= 500 {
			return CategoryUnreachable
		}
	}
	return CategoryProtocolError
}

// Retryable reports whether another attempt could succeed for an idempotent call.
func (e *CallError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnectionRefused:
		return true
	case KindHTTPError:
		return e.Status >= 500
	}
	return false
}

func newCallError(kind ErrorKind, msg string, err error) *CallError {
	return &CallError{Kind: kind, Message: msg, err: err}
}

// AsCallError extracts a *CallError from err, wrapping unknown errors as malformed responses.
func AsCallError(err error) *CallError {
	if err == nil {
		return nil
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}
	return newCallError(KindMalformedResponse, err.Error(), err)
}

// classifyNetError maps an error returned while executing the HTTP request.
// parent is the caller's context, used to tell caller cancellation from attempt timeouts.
func classifyNetError(parent context.Context, err error) *CallError {
	if parent.Err() != nil {
		return newCallError(KindCanceled, parent.Err().Error(), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newCallError(KindTimeout, "attempt deadline exceeded", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newCallError(KindTimeout, netErr.Error(), err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return newCallError(KindConnectionRefused, err.Error(), err)
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || (errors.As(err, &opErr) && opErr.Op == "dial") {
		return newCallError(KindConnectionRefused, err.Error(), err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && errors.Is(urlErr.Err, context.Canceled) {
		return newCallError(KindCanceled, urlErr.Error(), err)
	}
	// Anything else happened after the connection was usable (reset, EOF mid-read).
	return newCallError(KindTimeout, err.Error(), err)
}
