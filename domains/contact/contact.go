package contact

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidIdentifier = errors.New("identifier normalizes to empty")

// Contact is created lazily on the first inbound message from an
// unseen identifier, or explicitly by a user action. Identifier is
// stored normalized; (organization_id, identifier) is unique.
// Contacts are never hard-deleted by this core.
type Contact struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Identifier     string     `json:"identifier"`
	DisplayName    string     `json:"display_name,omitempty"`
	IsGroup        bool       `json:"is_group"`
	SessionName    string     `json:"session_name"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IContactStore is the persistence surface provisioning arbitrates
// through. Create must surface a unique-index violation as a
// distinguishable error so a lost race can re-read the winner.
type IContactStore interface {
	GetByIdentifier(ctx context.Context, organizationID, identifier string) (Contact, error)
	Create(ctx context.Context, c Contact) (Contact, error)
	TouchLastMessage(ctx context.Context, organizationID, identifier string, at time.Time) error
	ListByOrganization(ctx context.Context, organizationID string) ([]Contact, error)
}

type IContactUsecase interface {
	// EnsureContact provisions a contact for the identifier exactly
	// once per (organization, normalized identifier). A racing call
	// that loses the insert re-reads and returns the winning record
	// with created=false.
	EnsureContact(ctx context.Context, organizationID, identifier, sessionName string) (Contact, bool, error)
	Touch(ctx context.Context, organizationID, identifier string, at time.Time) error
	List(ctx context.Context, organizationID string) ([]Contact, error)
}
