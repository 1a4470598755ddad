package txapi

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-serialtx/pkg/errorx"
	"github.com/marcodd23/go-serialtx/pkg/txqueue"
	"github.com/pkg/errors"
)

// toHTTPError maps an operation failure to a fiber error. Usage errors pass through
// unchanged for the server error handler; a statement rejected by the database is a 422.
func toHTTPError(err error) error {
	var usageErr *errorx.UsageError

	switch {
	case errors.Is(err, txqueue.ErrLockWaitTimeout):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	case errors.Is(err, txqueue.ErrTransactionFinished):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, txqueue.ErrUnknownOperation), errors.As(err, &usageErr):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
}
