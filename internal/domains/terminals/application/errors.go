package application

import (
	"errors"
	"fmt"

	dispatchapp "github.com/Apurer/order-dispatch/internal/domains/dispatch/application"
	dispatchports "github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	"github.com/Apurer/order-dispatch/internal/domains/terminals/domain"
)

// ErrInvalidInput indicates a validation failure on a terminal request.
var ErrInvalidInput = errors.New("invalid input")

func mapError(err error) error {
	if errors.Is(err, domain.ErrMissingTerminalID) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

// failureOf classifies a dispatch error for display. Every error ends the attempt visibly.
func failureOf(err error) (domain.FailureKind, string) {
	switch {
	case errors.Is(err, dispatchports.ErrNotFound):
		return domain.FailureNotFound, "order not found"
	case errors.Is(err, dispatchports.ErrAlreadyServed):
		return domain.FailureAlreadyServed, "order already delivered"
	case errors.Is(err, dispatchports.ErrOrderClosed):
		return domain.FailureClosed, "order was cancelled or refunded"
	case errors.Is(err, dispatchports.ErrStoreMismatch):
		return domain.FailureStoreMismatch, "order belongs to another store"
	case errors.Is(err, dispatchapp.ErrInvalidInput):
		return domain.FailureInvalidCode, "scanned code is not valid"
	case errors.Is(err, dispatchports.ErrLockContention):
		return domain.FailureLockContention, "order is busy, try again"
	default:
		return domain.FailureUnknown, err.Error()
	}
}
