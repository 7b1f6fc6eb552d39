// Package errors defines the error taxonomy shared across the styler:
// per-setting validation failures (recoverable, collected), security
// failures (request-fatal), and transport failures (client-retryable).
package errors

import (
	"errors"
	"fmt"
	"sync"
)

// FieldError is a validation failure attributable to a single setting.
// Other settings in the same request still apply.
type FieldError struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Error implements the error interface
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

// SecurityCode distinguishes the two broad security failure categories
// the client needs for its retry decision. Anything finer grained stays
// in server-side logs.
type SecurityCode string

const (
	// CodeNonce means the request token failed verification. Clients may
	// refresh the nonce and retry once.
	CodeNonce SecurityCode = "nonce"
	// CodeCapability means the authenticated user lacks the required
	// capability. Clients must not retry.
	CodeCapability SecurityCode = "capability"
)

// SecurityError aborts an entire request before any setting reaches the
// sanitizer. Message is safe to return to clients; Detail is logged
// server-side only.
type SecurityError struct {
	Code    SecurityCode
	Message string
	Detail  string
}

// NewSecurityError creates a security error with a client-safe message
func NewSecurityError(code SecurityCode, message string) *SecurityError {
	return &SecurityError{Code: code, Message: message}
}

// WithDetail attaches a server-side-only detail to the error
func (e *SecurityError) WithDetail(detail string) *SecurityError {
	e.Detail = detail
	return e
}

// Error implements the error interface
func (e *SecurityError) Error() string {
	return fmt.Sprintf("security: %s: %s", e.Code, e.Message)
}

// TransportError is a network-level failure between the preview client
// and the server. Retryable errors may be re-attempted by the caller.
type TransportError struct {
	Op        string
	Err       error
	Retryable bool
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsSecurity extracts a SecurityError from an error chain
func AsSecurity(err error) (*SecurityError, bool) {
	var se *SecurityError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Collector aggregates per-setting validation failures so a request can
// report every invalid setting alongside the CSS generated from the
// valid ones.
type Collector struct {
	fields []FieldError
	mutex  sync.RWMutex
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{fields: make([]FieldError, 0)}
}

// Add records a validation failure for a setting key
func (c *Collector) Add(key, reason string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.fields = append(c.fields, FieldError{Key: key, Reason: reason})
}

// Fields returns a copy of all collected failures
func (c *Collector) Fields() []FieldError {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]FieldError, len(c.fields))
	copy(result, c.fields)
	return result
}

// HasErrors returns true if any failures were collected
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.fields) > 0
}

// Clear discards all collected failures
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.fields = c.fields[:0]
}
