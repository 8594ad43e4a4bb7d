package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	domainSession "github.com/kolibrisuite/chatsync/domains/session"
	"github.com/kolibrisuite/chatsync/pkg/apperror"
)

func ValidateLinkSession(ctx context.Context, request domainSession.LinkRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.SessionName,
			validation.Required,
			validation.Length(1, 64),
			is.PrintableASCII,
		),
	)

	if err != nil {
		return apperror.ValidationError(err.Error())
	}

	return nil
}
