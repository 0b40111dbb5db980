// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientData  = errors.New("insufficient data for calculation")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrInvalidPosition   = errors.New("invalid position")
	ErrPriceUnavailable  = errors.New("price unavailable")
	ErrInvalidSeries     = errors.New("invalid price series")
	ErrTrendlineTooShort = errors.New("trendline shorter than minimum length")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrDataNotFound      = errors.New("data not found")
	ErrDatabaseError     = errors.New("database error")
	ErrInputValidation   = errors.New("input validation failed")
)

// PositionError describes why a position was rejected.
type PositionError struct {
	PositionID string
	Field      string
	Value      float64
	Reason     string
}

func (e *PositionError) Error() string {
	if e.PositionID != "" {
		return fmt.Sprintf("invalid position [%s]: %s=%v: %s", e.PositionID, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid position: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidPosition.
func (e *PositionError) Unwrap() error {
	return ErrInvalidPosition
}

// NewPositionError creates a new PositionError.
func NewPositionError(positionID, field string, value float64, reason string) *PositionError {
	return &PositionError{
		PositionID: positionID,
		Field:      field,
		Value:      value,
		Reason:     reason,
	}
}

// FeedError represents a failure of an upstream price source.
type FeedError struct {
	Source    string
	Operation string
	Err       error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed error [%s] %s: %v", e.Source, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *FeedError) Unwrap() error {
	return e.Err
}

// Is reports every feed failure as a price outage to callers.
func (e *FeedError) Is(target error) bool {
	return target == ErrPriceUnavailable
}

// NewFeedError creates a new FeedError.
func NewFeedError(source, operation string, err error) *FeedError {
	return &FeedError{
		Source:    source,
		Operation: operation,
		Err:       err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
