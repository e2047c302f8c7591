// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package vinoshipper

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ErrorKind classifies an APIError.
type ErrorKind string

const (
	// KindValidation: the input was rejected locally; no request was sent.
	KindValidation ErrorKind = "validation"
	// KindTransport: no HTTP response was received.
	KindTransport ErrorKind = "transport"
	// KindRetryableService: the remote answered with a retryable status.
	KindRetryableService ErrorKind = "retryable_service"
	// KindTerminalService: the remote answered with a non-retryable status.
	KindTerminalService ErrorKind = "terminal_service"
	// KindCircuitOpen: the per-account circuit breaker rejected the call.
	KindCircuitOpen ErrorKind = "circuit_open"
)

// APIError is returned by every Client operation that fails.
type APIError struct {
	Message      string
	StatusCode   int    // 0 when no response was received
	ResponseBody []byte // raw body of a non-2xx response, possibly truncated
	Retryable    bool
	Kind         ErrorKind
	RetryAfter   time.Duration // parsed Retry-After header, if any

	cause error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("vinoshipper: %s (status %d)", e.Message, e.StatusCode)
	}
	return "vinoshipper: " + e.Message
}

// Unwrap exposes the underlying transport error, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

func validationError(format string, args ...any) *APIError {
	return &APIError{Message: fmt.Sprintf(format, args...), Kind: KindValidation}
}

func transportError(err error) *APIError {
	return &APIError{
		Message:   "unable to reach inventory API: " + err.Error(),
		Retryable: true,
		Kind:      KindTransport,
		cause:     err,
	}
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the remote.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsAuthFailure reports whether the remote rejected the credential.
func IsAuthFailure(err error) bool {
	status := StatusCode(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsValidation reports whether err was raised before any request was sent.
func IsValidation(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Kind == KindValidation
}

// IsRetryable classifies err under policy p. Transport failures are always
// retryable; service failures are retryable when their status is in the
// policy's set. Anything that is not an APIError is not retried.
func (p RetryPolicy) IsRetryable(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	switch apiErr.Kind {
	case KindTransport:
		return true
	case KindRetryableService, KindTerminalService:
		return p.RetriesStatus(apiErr.StatusCode)
	default:
		return false
	}
}

const maxErrorBodySize = 64 * 1024

// readBodyForError reads at most maxErrorBodySize bytes of an error body.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return nil
	}
	return body
}

// serviceError builds the APIError for a non-2xx response. The message is
// the first of: a JSON "message" field, a JSON "error" field, the raw body
// text, the status text, a generic "failed with status N".
func serviceError(resp *http.Response, body []byte, p RetryPolicy) *APIError {
	retryable := p.RetriesStatus(resp.StatusCode)
	kind := KindTerminalService
	if retryable {
		kind = KindRetryableService
	}
	return &APIError{
		Message:      extractErrorMessage(resp.StatusCode, statusText(resp), body),
		StatusCode:   resp.StatusCode,
		ResponseBody: body,
		Retryable:    retryable,
		Kind:         kind,
		RetryAfter:   parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

func extractErrorMessage(status int, text string, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" {
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err == nil {
			for _, key := range []string{"message", "error"} {
				if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
					return s
				}
			}
		} else {
			return trimmed
		}
	}
	if text != "" {
		return text
	}
	return fmt.Sprintf("API request failed with status %d", status)
}

// statusText prefers the reason phrase the server sent over the canonical one.
func statusText(resp *http.Response) string {
	if _, reason, ok := strings.Cut(resp.Status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}

// parseRetryAfter handles the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
