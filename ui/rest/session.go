package rest

import (
	"github.com/gofiber/fiber/v2"
	domainSession "github.com/kolibrisuite/chatsync/domains/session"
	"github.com/kolibrisuite/chatsync/pkg/utils"
	"github.com/kolibrisuite/chatsync/validations"
)

type Session struct {
	Service domainSession.ISessionUsecase
}

func InitRestSession(app fiber.Router, service domainSession.ISessionUsecase) Session {
	rest := Session{Service: service}

	app.Post("/sessions/link", rest.RequestLink)
	app.Post("/sessions/:session_name/unlink", rest.Unlink)
	app.Get("/sessions/:session_name", rest.Get)
	app.Get("/sessions", rest.List)
	return rest
}

func (controller *Session) RequestLink(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	var request domainSession.LinkRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Message: err.Error()})
	}

	if err := validations.ValidateLinkSession(c.UserContext(), request); err != nil {
		return errorResponse(c, err)
	}

	session, err := controller.Service.RequestLink(c.UserContext(), orgID, request.SessionName)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Link requested, waiting for QR",
		Results: session,
	})
}

func (controller *Session) Unlink(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	session, err := controller.Service.MarkDisconnected(c.UserContext(), orgID, c.Params("session_name"), "unlinked by user")
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session unlinked",
		Results: session,
	})
}

func (controller *Session) Get(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	session, err := controller.Service.Get(c.UserContext(), orgID, c.Params("session_name"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session found",
		Results: session,
	})
}

func (controller *Session) List(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	sessions, err := controller.Service.List(c.UserContext(), orgID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Sessions listed",
		Results: sessions,
	})
}
