package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is the parent of every "referenced thing does not exist"
// error. Callers match the family with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("not_found")

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAccountNotFound      = notFound("account_not_found")
	ErrOrderNotFound        = notFound("order_not_found")
	ErrQuoteNotFound        = notFound("quote_not_found")
	ErrAccountAlreadyExists = errors.New("account_already_exists")
	ErrInvalidState         = errors.New("invalid_state")
	ErrInvariantViolation   = errors.New("invariant_violation")
)

type notFoundError struct {
	code string
}

func notFound(code string) error {
	return &notFoundError{code: code}
}

func (e *notFoundError) Error() string {
	return e.code
}

func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RiskViolation reports a failed pre-trade risk check. Reason is meant for
// the client: it names the limit and the offending values.
type RiskViolation struct {
	Reason string
}

func (e *RiskViolation) Error() string {
	return "risk_violation: " + e.Reason
}

// NewRiskViolation formats a RiskViolation.
func NewRiskViolation(format string, args ...any) *RiskViolation {
	return &RiskViolation{Reason: fmt.Sprintf(format, args...)}
}

// Invariantf wraps ErrInvariantViolation with a description of what broke.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}
