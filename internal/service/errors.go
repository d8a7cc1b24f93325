package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput wraps client-side validation failures; nothing was
	// sent to the API.
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyCart    = errors.New("cart is empty")
)

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
