package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsufficientStockError(t *testing.T) {
	over := &InsufficientStockError{Barcode: "A1", Requested: 5, Available: 2}
	assert.Equal(t, "requested 5 of product A1 but only 2 available", over.Error())
	assert.False(t, over.OutOfStock())

	empty := &InsufficientStockError{Barcode: "A1", Requested: 1, Available: 0}
	assert.Equal(t, "product A1 is out of stock", empty.Error())
	assert.True(t, empty.OutOfStock())

	wrapped := fmt.Errorf("line 2: %w", over)
	assert.ErrorIs(t, wrapped, ErrInsufficientStock)
	assert.NotErrorIs(t, wrapped, ErrNotFound)

	var target *InsufficientStockError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, 2, target.Available)
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&PersistenceError{Key: "products", Err: cause})

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "products")
}

func TestInvalid(t *testing.T) {
	err := Invalid("quantity %d must be positive", -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: quantity -1 must be positive", err.Error())
}
