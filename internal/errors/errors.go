// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrMalformedInput = errors.New("malformed input")
	ErrConfigInvalid  = errors.New("invalid configuration")
	ErrDataNotFound   = errors.New("data not found")
	ErrDatabaseError  = errors.New("database error")
	ErrPartitionPanic = errors.New("partition task panicked")
)

// ValidationError represents a validation error on a point record or on
// the chain configuration. It always unwraps to ErrMalformedInput.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrMalformedInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// PartitionError reports the failure of a single (symbol, timeframe) task.
type PartitionError struct {
	Symbol    string
	Timeframe string
	Err       error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition error [%s/%s]: %v", e.Symbol, e.Timeframe, e.Err)
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}

// NewPartitionError creates a new PartitionError.
func NewPartitionError(symbol, timeframe string, err error) *PartitionError {
	return &PartitionError{
		Symbol:    symbol,
		Timeframe: timeframe,
		Err:       err,
	}
}

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
