package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Code identifies a class of provider failure.
type Code string

const (
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeTimeout         Code = "TIMEOUT"
	CodeConnection      Code = "CONNECTION"
	CodeUpstream        Code = "UPSTREAM_ERROR"
	CodeInvalidRequest  Code = "INVALID_REQUEST"
	CodeAuthentication  Code = "AUTHENTICATION"
	CodeInvalidResponse Code = "INVALID_RESPONSE"
)

// Error is a structured provider failure. Retryable distinguishes transient
// failures (worth another attempt) from permanent ones.
type Error struct {
	Code       Code
	Message    string
	HTTPStatus int
	Retryable  bool
	Provider   string
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable reports whether err is a transient provider error.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// errFromStatus maps an HTTP status code to a typed provider error.
// 408, 429 and 5xx are transient; client errors are permanent.
func errFromStatus(providerName string, status int, body []byte) *Error {
	msg := fmt.Sprintf("upstream returned %d", status)
	if len(body) > 0 {
		const maxBody = 512
		if len(body) > maxBody {
			body = body[:maxBody]
		}
		msg = fmt.Sprintf("upstream returned %d: %s", status, body)
	}

	e := &Error{Message: msg, HTTPStatus: status, Provider: providerName}
	switch {
	case status == http.StatusTooManyRequests:
		e.Code = CodeRateLimited
		e.Retryable = true
	case status == http.StatusRequestTimeout:
		e.Code = CodeTimeout
		e.Retryable = true
	case status >= 500:
		e.Code = CodeUpstream
		e.Retryable = true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Code = CodeAuthentication
	default:
		e.Code = CodeInvalidRequest
	}
	return e
}

// errFromTransport maps a transport-level failure to a typed provider error.
// Network failures and timeouts are transient by definition.
func errFromTransport(providerName string, err error) *Error {
	e := &Error{
		Message:   "request failed",
		Provider:  providerName,
		Retryable: true,
		Cause:     err,
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Code = CodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Code = CodeTimeout
	default:
		e.Code = CodeConnection
	}
	return e
}
