package rest

import (
	"github.com/gofiber/fiber/v2"
	domainMessage "github.com/kolibrisuite/chatsync/domains/message"
	domainSession "github.com/kolibrisuite/chatsync/domains/session"
	"github.com/kolibrisuite/chatsync/engine"
	"github.com/kolibrisuite/chatsync/pkg/utils"
)

// Ingest receives notifications from the transport collaborator. Both
// endpoints are asynchronous: the work is queued on the organization's
// shard and a 503 tells the collaborator to retry with backoff.
type Ingest struct {
	Dispatcher *engine.Dispatcher
}

func InitRestIngest(app fiber.Router, dispatcher *engine.Dispatcher) Ingest {
	rest := Ingest{Dispatcher: dispatcher}

	app.Post("/ingest/message", rest.Message)
	app.Post("/ingest/transition", rest.Transition)
	return rest
}

func (controller *Ingest) Message(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	var evt domainMessage.InboundEvent
	if err := c.BodyParser(&evt); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Message: err.Error()})
	}

	if !controller.Dispatcher.IngestInboundMessage(orgID, evt) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "QUEUE_FULL",
			Message: "Shard queue full, retry later",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(utils.ResponseData{
		Status:  fiber.StatusAccepted,
		Code:    "ACCEPTED",
		Message: "Message queued for ingestion",
	})
}

type transitionRequest struct {
	SessionName string                       `json:"session_name" form:"session_name"`
	Kind        domainSession.TransitionKind `json:"kind" form:"kind"`
	// Detail carries the QR material, phone number or disconnect
	// reason depending on the kind.
	Detail string `json:"detail" form:"detail"`
}

func (controller *Ingest) Transition(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	var request transitionRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Message: err.Error()})
	}
	if request.SessionName == "" || request.Kind == "" {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "VALIDATION_ERROR",
			Message: "session_name and kind are required",
		})
	}

	if !controller.Dispatcher.IngestSessionTransition(orgID, request.SessionName, request.Kind, request.Detail) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "QUEUE_FULL",
			Message: "Shard queue full, retry later",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(utils.ResponseData{
		Status:  fiber.StatusAccepted,
		Code:    "ACCEPTED",
		Message: "Transition queued",
	})
}
