package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced barcode, transaction or multi-sale group does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateBarcode is returned when a registration or edit collides with an existing product.
var ErrDuplicateBarcode = errors.New("barcode already exists")

// ErrInsufficientStock is returned when a decrement would drive a quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrInvalidInput indicates a non-positive quantity, a negative price or an empty required field.
var ErrInvalidInput = errors.New("invalid input")

// ErrPersistence indicates that a durable save did not complete.
var ErrPersistence = errors.New("persistence failure")

// InsufficientStockError carries the requested and available amounts so the caller
// can render a precise message.
type InsufficientStockError struct {
	Barcode   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.OutOfStock() {
		return fmt.Sprintf("product %s is out of stock", e.Barcode)
	}
	return fmt.Sprintf("requested %d of product %s but only %d available", e.Requested, e.Barcode, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// OutOfStock reports whether nothing at all was available.
func (e *InsufficientStockError) OutOfStock() bool {
	return e.Available <= 0
}

// PersistenceError reports a snapshot that could not be saved. The in-memory state
// it describes is still valid.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("saving %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Invalid wraps ErrInvalidInput with a description of the failed precondition.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
