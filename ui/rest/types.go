package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	domainMessage "github.com/kolibrisuite/chatsync/domains/message"
	domainSession "github.com/kolibrisuite/chatsync/domains/session"
	"github.com/kolibrisuite/chatsync/pkg/utils"
	"github.com/kolibrisuite/chatsync/repository"
)

// organizationID resolves the calling organization from the request.
// Every API route is organization-scoped; a request without one is
// rejected before reaching any usecase.
func organizationID(c *fiber.Ctx) string {
	orgID := c.Get("X-Organization-ID")
	if orgID == "" {
		orgID = c.Query("organization_id")
	}
	return orgID
}

type typedError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}

// errorResponse maps domain errors onto REST statuses. Unrecognized
// errors become a 500.
func errorResponse(c *fiber.Ctx, err error) error {
	if typed, ok := err.(typedError); ok {
		return c.Status(typed.StatusCode()).JSON(utils.ResponseData{
			Status:  typed.StatusCode(),
			Code:    typed.ErrCode(),
			Message: typed.Error(),
		})
	}

	status := fiber.StatusInternalServerError
	code := "INTERNAL_SERVER_ERROR"

	var sendErr *domainMessage.SendError
	switch {
	case errors.Is(err, domainSession.ErrSessionNotFound):
		status, code = fiber.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, domainSession.ErrAlreadyActive):
		status, code = fiber.StatusConflict, "SESSION_ALREADY_ACTIVE"
	case errors.Is(err, domainSession.ErrInvalidTransition):
		status, code = fiber.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domainSession.ErrDuplicateSession):
		status, code = fiber.StatusConflict, "DUPLICATE_SESSION"
	case errors.Is(err, repository.ErrMessageNotFound):
		status, code = fiber.StatusNotFound, "MESSAGE_NOT_FOUND"
	case errors.Is(err, repository.ErrContactNotFound):
		status, code = fiber.StatusNotFound, "CONTACT_NOT_FOUND"
	case errors.As(err, &sendErr):
		status, code = fiber.StatusBadGateway, "SEND_FAILED"
	}

	return c.Status(status).JSON(utils.ResponseData{
		Status:  status,
		Code:    code,
		Message: err.Error(),
	})
}

func missingOrganization(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{
		Status:  fiber.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: "X-Organization-ID header is required",
	})
}
