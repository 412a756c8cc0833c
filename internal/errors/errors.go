package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for skybox
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitSessionNotFound = 2
	ExitConfigError     = 3
	ExitAuthRequired    = 4
	ExitCapacity        = 5
	ExitTransient       = 6
	ExitTerminated      = 7
	ExitProvisioning    = 8
	ExitCleanup         = 9
	ExitEngineFailed    = 10
)

// SkyboxError is the base error type for skybox
type SkyboxError struct {
	Code    int
	Message string
	Hint    string
	Cause   error
}

func (e *SkyboxError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SkyboxError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *SkyboxError) ExitCode() int {
	return e.Code
}

// New creates a new SkyboxError
func New(code int, message string) *SkyboxError {
	return &SkyboxError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a SkyboxError
func Wrap(code int, message string, cause error) *SkyboxError {
	return &SkyboxError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// SessionNotFound returns an error for a missing session
func SessionNotFound(name string) *SkyboxError {
	return New(ExitSessionNotFound, fmt.Sprintf("session not found: %s", name))
}

// SessionNotRunning returns an error when a session exists but is not running
func SessionNotRunning(name string) *SkyboxError {
	return New(ExitGeneralError, fmt.Sprintf("session %s is not running", name))
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *SkyboxError {
	return Wrap(ExitConfigError, message, cause)
}

// AuthRequired returns a setup-required error for missing backend credentials
func AuthRequired(provider string) *SkyboxError {
	e := New(ExitAuthRequired, fmt.Sprintf("no credentials for the %s backend", provider))
	e.Hint = "run 'skybox auth login' to store an API token"
	return e
}

// CapacityExceeded reports a remote quota or concurrency limit. The running
// count is part of the message so the user knows what is occupying the quota.
func CapacityExceeded(running int, cause error) *SkyboxError {
	e := Wrap(ExitCapacity, fmt.Sprintf("cloud capacity reached with %d running session(s)", running), cause)
	e.Hint = "stop a running session or wait for one to finish"
	return e
}

// Transient returns an error for infrastructure hiccups that survived retries
func Transient(op string, cause error) *SkyboxError {
	return Wrap(ExitTransient, fmt.Sprintf("%s did not recover after retries", op), cause)
}

// Terminated returns an error for a compute unit that no longer exists
func Terminated(what string, cause error) *SkyboxError {
	return Wrap(ExitTerminated, fmt.Sprintf("%s has been terminated", what), cause)
}

// ProvisioningFailed returns an error for a failed post-boot provisioning step
func ProvisioningFailed(step string, cause error) *SkyboxError {
	return Wrap(ExitProvisioning, fmt.Sprintf("provisioning failed during %s", step), cause)
}

// CleanupFailed returns an error for a single resource deletion failure
func CleanupFailed(resource string, cause error) *SkyboxError {
	return Wrap(ExitCleanup, fmt.Sprintf("failed to clean up %s", resource), cause)
}

// EngineFailed returns an error for container engine operations
func EngineFailed(op string, cause error) *SkyboxError {
	return Wrap(ExitEngineFailed, fmt.Sprintf("container engine %s failed", op), cause)
}

// WorkspaceError returns an error for workspace operations
func WorkspaceError(op string, cause error) *SkyboxError {
	return Wrap(ExitGeneralError, fmt.Sprintf("workspace %s failed", op), cause)
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *SkyboxError {
	return New(ExitGeneralError, message)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var sbErr *SkyboxError
	if errors.As(err, &sbErr) {
		return sbErr.ExitCode()
	}
	return ExitGeneralError
}

// GetHint extracts a remediation hint from an error chain, if any
func GetHint(err error) string {
	var sbErr *SkyboxError
	if errors.As(err, &sbErr) {
		return sbErr.Hint
	}
	return ""
}

// Classification. The cloud backend reports failures three ways: structured
// error codes, HTTP status classes, and bare message text. The helpers below
// normalize all three so callers branch on kind, not on wire details.

// coder is implemented by backend errors that carry a structured error code.
// The code may be any JSON value; only string codes participate in
// classification.
type coder interface {
	ErrorCode() any
}

// statusCoder is implemented by backend errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// transienter marks errors that are retryable by construction.
type transienter interface {
	Transient() bool
}

var terminationCodes = map[string]bool{
	"instance_not_found":  true,
	"instance_terminated": true,
	"unit_not_found":      true,
	"unit_terminated":     true,
}

var terminationPhrases = []string{
	"no longer exists",
	"has been terminated",
	"instance not found",
	"unit not found",
}

var capacityPhrases = []string{
	"quota",
	"capacity",
	"concurren",
	"limit reached",
	"limit exceeded",
	"too many instances",
}

var transientPhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"timed out",
	"temporarily unavailable",
	"handshake",
	"bad gateway",
	"service unavailable",
	"unexpected eof",
}

// IsTerminated reports whether err indicates the compute unit is gone, as
// opposed to a transient failure. Either a string termination code or a
// termination phrase in the message qualifies; non-string codes do not.
func IsTerminated(err error) bool {
	if err == nil {
		return false
	}

	var sbErr *SkyboxError
	if errors.As(err, &sbErr) && sbErr.Code == ExitTerminated {
		return true
	}

	var c coder
	if errors.As(err, &c) {
		if code, ok := c.ErrorCode().(string); ok && terminationCodes[code] {
			return true
		}
	}

	return containsAny(err.Error(), terminationPhrases)
}

// MatchesCapacity reports whether a raw backend error looks like a quota or
// concurrency rejection. Used by the cloud provider to convert such errors
// into CapacityExceeded; never retried.
func MatchesCapacity(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), capacityPhrases)
}

// IsCapacity reports whether err was classified as a capacity error.
func IsCapacity(err error) bool {
	var sbErr *SkyboxError
	return errors.As(err, &sbErr) && sbErr.Code == ExitCapacity
}

// IsTransient reports whether err is worth retrying with backoff. Terminated
// and capacity conditions are never transient, whatever their message text.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsTerminated(err) || MatchesCapacity(err) || IsCapacity(err) {
		return false
	}

	var sbErr *SkyboxError
	if errors.As(err, &sbErr) && sbErr.Code == ExitTransient {
		return true
	}

	var tr transienter
	if errors.As(err, &tr) && tr.Transient() {
		return true
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() >= 500 {
		return true
	}

	return containsAny(err.Error(), transientPhrases)
}

func containsAny(msg string, phrases []string) bool {
	msg = strings.ToLower(msg)
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
