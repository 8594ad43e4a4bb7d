package rest

import (
	"github.com/gofiber/fiber/v2"
	domainContact "github.com/kolibrisuite/chatsync/domains/contact"
	"github.com/kolibrisuite/chatsync/pkg/utils"
)

type Contact struct {
	Service domainContact.IContactUsecase
}

func InitRestContact(app fiber.Router, service domainContact.IContactUsecase) Contact {
	rest := Contact{Service: service}

	app.Get("/contacts", rest.List)
	return rest
}

func (controller *Contact) List(c *fiber.Ctx) error {
	orgID := organizationID(c)
	if orgID == "" {
		return missingOrganization(c)
	}

	contacts, err := controller.Service.List(c.UserContext(), orgID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Contacts listed",
		Results: contacts,
	})
}
