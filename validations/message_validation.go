package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	domainMessage "github.com/kolibrisuite/chatsync/domains/message"
	"github.com/kolibrisuite/chatsync/pkg/apperror"
)

func ValidateSendMessage(ctx context.Context, request domainMessage.SendRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.SessionName, validation.Required),
		validation.Field(&request.ToIdentifier, validation.Required),
		validation.Field(&request.Content, validation.Required, validation.Length(1, 65536)),
	)

	if err != nil {
		return apperror.ValidationError(err.Error())
	}

	return nil
}

func ValidateHistoryRequest(ctx context.Context, request domainMessage.HistoryRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Identifier, validation.Required),
		validation.Field(&request.Page, validation.Min(0)),
		validation.Field(&request.Limit, validation.Min(0)),
	)

	if err != nil {
		return apperror.ValidationError(err.Error())
	}

	return nil
}

func ValidateStatusUpdate(ctx context.Context, messageID string, status domainMessage.Status) error {
	if messageID == "" {
		return apperror.ValidationError("message_id: cannot be blank.")
	}
	switch status {
	case domainMessage.StatusSent, domainMessage.StatusDelivered, domainMessage.StatusRead, domainMessage.StatusFailed:
		return nil
	default:
		return apperror.ValidationError("status: must be a valid value.")
	}
}
