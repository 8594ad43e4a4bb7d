package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domainContact "github.com/kolibrisuite/chatsync/domains/contact"
	domainMessage "github.com/kolibrisuite/chatsync/domains/message"
	domainSession "github.com/kolibrisuite/chatsync/domains/session"
	"github.com/kolibrisuite/chatsync/pkg/apperror"
	"github.com/kolibrisuite/chatsync/pkg/content"
	"github.com/kolibrisuite/chatsync/pkg/ledger"
	"github.com/kolibrisuite/chatsync/pkg/waid"
	"github.com/kolibrisuite/chatsync/repository"
)

type serviceMessage struct {
	repo     *repository.MessageGormRepository
	contacts domainContact.IContactUsecase
	sessions domainSession.ISessionUsecase
	gateway  domainMessage.Gateway

	historyDefault int
	historyMax     int
}

func NewMessageService(
	repo *repository.MessageGormRepository,
	contacts domainContact.IContactUsecase,
	sessions domainSession.ISessionUsecase,
	gateway domainMessage.Gateway,
	historyDefault, historyMax int,
) domainMessage.IMessageUsecase {
	if historyDefault <= 0 {
		historyDefault = 50
	}
	if historyMax <= 0 {
		historyMax = 200
	}
	return &serviceMessage{
		repo:           repo,
		contacts:       contacts,
		sessions:       sessions,
		gateway:        gateway,
		historyDefault: historyDefault,
		historyMax:     historyMax,
	}
}

// IngestInbound normalizes one pushed message: resolve the payload
// once, provision the contact if the sender is unseen, persist, and
// report what happened so the dispatcher can fan out. A duplicate
// MessageID is not an error; it is absorbed here and flagged.
func (s *serviceMessage) IngestInbound(ctx context.Context, organizationID string, evt domainMessage.InboundEvent) (domainMessage.IngestResult, error) {
	if !ledger.ValidKey(evt.MessageID) {
		return domainMessage.IngestResult{}, apperror.ValidationError("message_id: invalid deduplication key")
	}

	sentAt := evt.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	resolved := content.Resolve(evt.Kind, evt.Content)

	contactIdentifier := waid.Normalize(evt.From)
	msg := domainMessage.Message{
		MessageID:         evt.MessageID,
		OrganizationID:    organizationID,
		SessionName:       evt.SessionName,
		Direction:         domainMessage.DirectionInbound,
		FromIdentifier:    evt.From,
		ToIdentifier:      evt.To,
		ContactIdentifier: contactIdentifier,
		Kind:              evt.Kind,
		RawContent:        evt.Content,
		ResolvedPreview:   resolved.Preview,
		MediaKind:         resolved.MediaKind,
		Status:            domainMessage.StatusDelivered,
		SentAt:            sentAt,
	}

	result := domainMessage.IngestResult{}

	if contactIdentifier != "" {
		contact, created, err := s.contacts.EnsureContact(ctx, organizationID, evt.From, evt.SessionName)
		if err != nil {
			// Contact provisioning failure must not lose the message.
			logrus.WithError(err).Warnf("[MESSAGE] Contact provisioning failed for %s", contactIdentifier)
		} else {
			result.ContactCreated = created
			result.ContactID = contact.ID
			if err := s.contacts.Touch(ctx, organizationID, evt.From, sentAt); err != nil {
				logrus.WithError(err).Debugf("[MESSAGE] Failed to bump last_message_at for %s", contactIdentifier)
			}
		}
	}

	stored, err := s.repo.Create(ctx, msg)
	if err == repository.ErrDuplicateMessage {
		logrus.Debugf("[MESSAGE] Duplicate %s, deduplicated", evt.MessageID)
		result.Message = msg
		result.Duplicate = true
		return result, nil
	}
	if err != nil {
		return domainMessage.IngestResult{}, err
	}

	result.Message = stored
	return result, nil
}

// Send pushes an outbound message through the gateway. A gateway
// failure still persists the record with StatusFailed so the client
// sees the outcome; the SendError is surfaced to the caller.
func (s *serviceMessage) Send(ctx context.Context, organizationID string, request domainMessage.SendRequest) (domainMessage.Message, error) {
	sess, err := s.sessions.Get(ctx, organizationID, request.SessionName)
	if err != nil {
		return domainMessage.Message{}, err
	}
	if sess.Status != domainSession.StatusConnected {
		return domainMessage.Message{}, apperror.ValidationError("session_name: session is not connected")
	}

	resolved := content.Resolve("text", request.Content)
	now := time.Now()
	msg := domainMessage.Message{
		OrganizationID:    organizationID,
		SessionName:       request.SessionName,
		Direction:         domainMessage.DirectionOutbound,
		FromIdentifier:    sess.PhoneNumber,
		ToIdentifier:      request.ToIdentifier,
		ContactIdentifier: waid.Normalize(request.ToIdentifier),
		Kind:              "text",
		RawContent:        request.Content,
		ResolvedPreview:   resolved.Preview,
		MediaKind:         resolved.MediaKind,
		SentAt:            now,
	}

	messageID, sendErr := s.gateway.Send(ctx, request.SessionName, request.ToIdentifier, request.Content)
	if sendErr != nil {
		msg.MessageID = "failed-" + uuid.NewString()
		msg.Status = domainMessage.StatusFailed
		if _, err := s.repo.Create(ctx, msg); err != nil {
			logrus.WithError(err).Error("[MESSAGE] Failed to persist failed send")
		}
		logrus.WithError(sendErr).Warnf("[MESSAGE] Send failed for %s -> %s", request.SessionName, request.ToIdentifier)
		return msg, &domainMessage.SendError{Reason: sendErr.Error()}
	}

	msg.MessageID = messageID
	msg.Status = domainMessage.StatusSent

	stored, err := s.repo.Create(ctx, msg)
	if err == repository.ErrDuplicateMessage {
		// The gateway echoed the send back through the push path
		// first; the ledger semantics make this the same message.
		logrus.Debugf("[MESSAGE] Outbound %s already ingested via push", messageID)
		return msg, nil
	}
	if err != nil {
		return domainMessage.Message{}, err
	}

	if err := s.contacts.Touch(ctx, organizationID, request.ToIdentifier, now); err != nil {
		logrus.WithError(err).Debugf("[MESSAGE] Failed to bump last_message_at for %s", msg.ContactIdentifier)
	}

	return stored, nil
}

// FetchHistory is the pull path. Rows come back already filtered and
// paged from the store; running them through the ledger merge
// guarantees the exact ordering contract the push path uses, so the
// client can merge both paths and converge.
func (s *serviceMessage) FetchHistory(ctx context.Context, request domainMessage.HistoryRequest) ([]domainMessage.Message, error) {
	identifier := waid.Normalize(request.Identifier)
	if identifier == "" {
		return nil, apperror.ValidationError("identifier: cannot be normalized")
	}

	limit := request.Limit
	if limit <= 0 {
		limit = s.historyDefault
	}
	if limit > s.historyMax {
		limit = s.historyMax
	}

	rows, err := s.repo.History(ctx, request.OrganizationID, identifier, request.Page, limit)
	if err != nil {
		return nil, err
	}
	return ledger.UpsertBatch(nil, rows), nil
}

// Search runs a text query against resolved previews. Payloads that
// resolved to nothing are invisible to search even though their raw
// content is stored.
func (s *serviceMessage) Search(ctx context.Context, organizationID, query string, limit int) ([]domainMessage.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperror.ValidationError("query: cannot be blank")
	}
	if limit <= 0 {
		limit = s.historyDefault
	}
	if limit > s.historyMax {
		limit = s.historyMax
	}
	rows, err := s.repo.Search(ctx, organizationID, query, limit)
	if err != nil {
		return nil, err
	}
	return ledger.UpsertBatch(nil, rows), nil
}

// UpdateStatus applies a delivery receipt. The status enum only
// moves forward (with failed always reachable); regressions are
// ignored rather than errored since receipts arrive out of order.
func (s *serviceMessage) UpdateStatus(ctx context.Context, organizationID, messageID string, status domainMessage.Status) (domainMessage.Message, error) {
	current, err := s.repo.Get(ctx, organizationID, messageID)
	if err != nil {
		return domainMessage.Message{}, err
	}
	if !domainMessage.CanProgress(current.Status, status) {
		logrus.Debugf("[MESSAGE] Ignoring status regression %s: %s -> %s", messageID, current.Status, status)
		return current, nil
	}
	if err := s.repo.UpdateStatus(ctx, organizationID, messageID, status); err != nil {
		return domainMessage.Message{}, err
	}
	current.Status = status
	return current, nil
}
