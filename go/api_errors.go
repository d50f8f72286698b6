package dispatchserver

import (
	"errors"

	"github.com/gin-gonic/gin"

	dispatchworkflows "github.com/Apurer/order-dispatch/internal/domains/dispatch/adapters/workflows"
	dispatchapp "github.com/Apurer/order-dispatch/internal/domains/dispatch/application"
	dispatchports "github.com/Apurer/order-dispatch/internal/domains/dispatch/ports"
	terminalsapp "github.com/Apurer/order-dispatch/internal/domains/terminals/application"
	terminalsdomain "github.com/Apurer/order-dispatch/internal/domains/terminals/domain"
	terminalsports "github.com/Apurer/order-dispatch/internal/domains/terminals/ports"
	apierrors "github.com/Apurer/order-dispatch/internal/shared/errors"
)

var responder = apierrors.NewResponder("", dispatchProblem, terminalProblem)

// respondProblem sends an explicit problem through the shared responder.
func respondProblem(c *gin.Context, problem apierrors.ProblemDetail) {
	responder.Respond(c, problem)
}

func respondError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	responder.RespondError(c, err)
}

func respondValidation(c *gin.Context, err error) {
	respondProblem(c, apierrors.ErrValidation.WithDetail(err.Error()))
}

func dispatchProblem(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, dispatchports.ErrNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, dispatchports.ErrAlreadyServed):
		return apierrors.ErrAlreadyServed.WithDetail(err.Error()), true
	case errors.Is(err, dispatchports.ErrOrderClosed):
		return apierrors.ErrOrderClosed.WithDetail(err.Error()), true
	case errors.Is(err, dispatchports.ErrStoreMismatch):
		return apierrors.ErrStoreMismatch.WithDetail(err.Error()), true
	case errors.Is(err, dispatchports.ErrLockContention):
		return apierrors.ErrUnavailable.WithDetail(err.Error()), true
	case errors.Is(err, dispatchapp.ErrInvalidInput), errors.Is(err, dispatchworkflows.ErrEmptyBatch):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}

func terminalProblem(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, terminalsports.ErrSessionNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, terminalsdomain.ErrBusy), errors.Is(err, terminalsdomain.ErrNotPreviewing):
		return apierrors.ErrTerminalBusy.WithDetail(err.Error()), true
	case errors.Is(err, terminalsdomain.ErrStaleAttempt):
		return apierrors.ErrConflict.WithDetail(err.Error()), true
	case errors.Is(err, terminalsapp.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}
