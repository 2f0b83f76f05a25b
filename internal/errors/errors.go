// Package errors provides custom error types for screening and backtesting.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientData = errors.New("insufficient price history")
	ErrDataUnavailable  = errors.New("data temporarily unavailable")
	ErrUniverseGate     = errors.New("excluded by universe price/volume gate")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrInvalidMode      = errors.New("invalid scan mode")
	ErrGraderState      = errors.New("backtest grader in wrong state")
	ErrDrainStalled     = errors.New("result drain stalled")
	ErrPoolStopped      = errors.New("worker pool stopped")
	ErrDatabaseError    = errors.New("database error")
	ErrNotFound         = errors.New("not found")
)

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// WorkerError is raised when a unit fails inside a pool worker in a way the
// analysis pipeline did not recognize.
type WorkerError struct {
	WorkerID int
	Symbol   string
	Offset   int
	Err      error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d failed on %s (offset %d): %v", e.WorkerID, e.Symbol, e.Offset, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// NewWorkerError creates a new WorkerError.
func NewWorkerError(workerID int, symbol string, offset int, err error) *WorkerError {
	return &WorkerError{
		WorkerID: workerID,
		Symbol:   symbol,
		Offset:   offset,
		Err:      err,
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

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsRecoverable reports whether err is an expected per-stock outcome that
// should end the stock's analysis with no verdict.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrDataUnavailable) ||
		errors.Is(err, ErrUniverseGate) ||
		errors.Is(err, ErrSymbolNotFound)
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
