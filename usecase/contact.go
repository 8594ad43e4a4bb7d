package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domainContact "github.com/kolibrisuite/chatsync/domains/contact"
	"github.com/kolibrisuite/chatsync/pkg/waid"
	"github.com/kolibrisuite/chatsync/repository"
)

type serviceContact struct {
	repo domainContact.IContactStore
}

func NewContactService(repo domainContact.IContactStore) domainContact.IContactUsecase {
	return &serviceContact{repo: repo}
}

// EnsureContact provisions a contact record for an identifier
// exactly once. The store's unique index does the arbitration: a
// concurrent call that loses the insert re-reads and returns the
// winner with created=false instead of erroring.
func (s *serviceContact) EnsureContact(ctx context.Context, organizationID, identifier, sessionName string) (domainContact.Contact, bool, error) {
	normalized := waid.Normalize(identifier)
	if normalized == "" {
		return domainContact.Contact{}, false, domainContact.ErrInvalidIdentifier
	}

	existing, err := s.repo.GetByIdentifier(ctx, organizationID, normalized)
	if err == nil {
		return existing, false, nil
	}
	if err != repository.ErrContactNotFound {
		return domainContact.Contact{}, false, err
	}

	now := time.Now()
	created, err := s.repo.Create(ctx, domainContact.Contact{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Identifier:     normalized,
		IsGroup:        waid.Classify(identifier) == waid.KindGroup,
		SessionName:    sessionName,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err == nil {
		logrus.Infof("[CONTACT] Provisioned %s for org %s", normalized, organizationID)
		return created, true, nil
	}
	if err != repository.ErrDuplicateContact {
		return domainContact.Contact{}, false, err
	}

	// Benign race: another path inserted first. Return its record.
	logrus.Debugf("[CONTACT] Lost provisioning race for %s, re-reading", normalized)
	winner, err := s.repo.GetByIdentifier(ctx, organizationID, normalized)
	if err != nil {
		return domainContact.Contact{}, false, err
	}
	return winner, false, nil
}

func (s *serviceContact) Touch(ctx context.Context, organizationID, identifier string, at time.Time) error {
	normalized := waid.Normalize(identifier)
	if normalized == "" {
		return domainContact.ErrInvalidIdentifier
	}
	return s.repo.TouchLastMessage(ctx, organizationID, normalized, at)
}

func (s *serviceContact) List(ctx context.Context, organizationID string) ([]domainContact.Contact, error) {
	return s.repo.ListByOrganization(ctx, organizationID)
}
