// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrEndOfStream       = errors.New("end of stream")
	ErrOutOfOrderData    = errors.New("out of order data")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrRunNotStarted     = errors.New("run not started")
	ErrRunFinished       = errors.New("run already finished")
	ErrSymbolUnknown     = errors.New("unknown symbol")
)

// DataError represents a fatal feed-level error. The run aborts but
// partial results up to the failure point remain retrievable.
type DataError struct {
	Symbol    string
	Timestamp time.Time
	LastSeen  time.Time
	Err       error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error [%s]: event at %s after %s: %v",
		e.Symbol, e.Timestamp.Format(time.RFC3339), e.LastSeen.Format(time.RFC3339), e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewOutOfOrderError creates a DataError for a feed that yielded a
// timestamp earlier than its own last-emitted timestamp.
func NewOutOfOrderError(symbol string, ts, lastSeen time.Time) *DataError {
	return &DataError{
		Symbol:    symbol,
		Timestamp: ts,
		LastSeen:  lastSeen,
		Err:       ErrOutOfOrderData,
	}
}

// OrderValidationError represents an invalid order request. The order is
// rejected and the run continues.
type OrderValidationError struct {
	Symbol  string
	Field   string
	Value   interface{}
	Message string
}

func (e *OrderValidationError) Error() string {
	return fmt.Sprintf("order validation [%s]: %s (%v): %s", e.Symbol, e.Field, e.Value, e.Message)
}

func (e *OrderValidationError) Unwrap() error {
	return ErrInvalidOrder
}

// NewOrderValidationError creates a new OrderValidationError.
func NewOrderValidationError(symbol, field string, value interface{}, message string) *OrderValidationError {
	return &OrderValidationError{
		Symbol:  symbol,
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// InsufficientFundsError represents a failed buying-power check. The
// order transitions to Rejected and is reported to the strategy.
type InsufficientFundsError struct {
	OrderID   string
	Symbol    string
	Required  string
	Available string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds [%s] %s: required %s, available %s",
		e.OrderID, e.Symbol, e.Required, e.Available)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// ConfigurationError represents invalid model parameters. Fatal at
// initialization, before any event is processed.
type ConfigurationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field string, value interface{}, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
