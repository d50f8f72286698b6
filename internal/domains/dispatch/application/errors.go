package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/order-dispatch/internal/domains/dispatch/domain"
	"github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	"github.com/Apurer/order-dispatch/internal/platform/retry"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errors.New("invalid dispatch input")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrEmptyCode) ||
		errors.Is(err, domain.ErrMissingOrderID) ||
		errors.Is(err, domain.ErrMissingStation) ||
		errors.Is(err, domain.ErrMissingOperator) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, domain.ErrInvalidLineItems) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

// IsTransient classifies the errors the retry executor may retry for dispatch writes.
func IsTransient(err error) bool {
	return ports.IsLockContention(err) || retry.IsLockNotAvailable(err)
}
