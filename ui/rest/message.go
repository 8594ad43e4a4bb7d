package rest

import (
	"github.com/gofiber/fiber/v2"
	domainMessage "github.com/kolibrisuite/chatsync/domains/message"
	"github.com/kolibrisuite/chatsync/pkg/utils"
	"github.com/kolibrisuite/chatsync/validations"
)

type Message struct {
	Service domainMessage.IMessageUsecase
}

func InitRestMessage(app fiber.Router, service domainMessage.IMessageUsecase) Message {
	rest := Message{Service: service}

	app.Post("/messages/send", rest.Send)
	app.Get("/messages/history", rest.History)
	app.Get("/messages/search", rest.Search)
	app.Post("/messages/:message_id/status", rest.UpdateStatus)
	return rest
}

func (controller *Message) Send(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	var request domainMessage.SendRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Message: err.Error()})
	}

	if err := validations.ValidateSendMessage(c.UserContext(), request); err != nil {
		return errorResponse(c, err)
	}

	msg, err := controller.Service.Send(c.UserContext(), orgID, request)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Message sent",
		Results: msg,
	})
}

func (controller *Message) History(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	request := domainMessage.HistoryRequest{
		OrganizationID: orgID,
		Identifier:     c.Query("identifier"),
		Page:           c.QueryInt("page", 0),
		Limit:          c.QueryInt("limit", 0),
	}

	if err := validations.ValidateHistoryRequest(c.UserContext(), request); err != nil {
		return errorResponse(c, err)
	}

	messages, err := controller.Service.FetchHistory(c.UserContext(), request)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "History fetched",
		Results: messages,
	})
}

func (controller *Message) Search(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	messages, err := controller.Service.Search(c.UserContext(), orgID, c.Query("q"), c.QueryInt("limit", 0))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Search complete",
		Results: messages,
	})
}

type statusUpdateRequest struct {
	Status domainMessage.Status `json:"status" form:"status"`
}

func (controller *Message) UpdateStatus(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	var request statusUpdateRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Message: err.Error()})
	}

	messageID := c.Params("message_id")
	if err := validations.ValidateStatusUpdate(c.UserContext(), messageID, request.Status); err != nil {
		return errorResponse(c, err)
	}

	msg, err := controller.Service.UpdateStatus(c.UserContext(), orgID, messageID, request.Status)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Status updated",
		Results: msg,
	})
}
