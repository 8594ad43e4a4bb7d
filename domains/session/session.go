package session

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusQRReady      Status = "qr_ready"
	StatusConnected    Status = "connected"
)

var (
	// ErrAlreadyActive rejects a link request on a session that is
	// not currently disconnected.
	ErrAlreadyActive = errors.New("session is already active")

	// ErrInvalidTransition rejects a lifecycle operation attempted
	// from a state it is not valid in. The session is left untouched
	// and no event is emitted.
	ErrInvalidTransition = errors.New("invalid session transition")

	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session name already exists in this organization")
)

// Session is one linked messaging account for an organization.
// SessionName is unique per organization. QRMaterial is only present
// while qr_ready; PhoneNumber only once connected. Sessions are never
// deleted, only retired by disconnecting.
type Session struct {
	ID                 string     `json:"id"`
	OrganizationID     string     `json:"organization_id"`
	SessionName        string     `json:"session_name"`
	Status             Status     `json:"status"`
	PhoneNumber        string     `json:"phone_number,omitempty"`
	QRMaterial         string     `json:"qr_material,omitempty"`
	LastConnectedAt    *time.Time `json:"last_connected_at,omitempty"`
	LastDisconnectedAt *time.Time `json:"last_disconnected_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TransitionKind names the external notifications that drive the
// state machine through IngestSessionTransition.
type TransitionKind string

const (
	TransitionLinkRequested TransitionKind = "link_requested"
	TransitionQRIssued      TransitionKind = "qr_issued"
	TransitionConnected     TransitionKind = "connected"
	TransitionDisconnected  TransitionKind = "disconnected"
)

// TransitionEvent is emitted exactly once per successful transition
// and consumed by the fan-out dispatcher.
type TransitionEvent struct {
	OrganizationID string    `json:"organization_id"`
	SessionName    string    `json:"session_name"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	Reason         string    `json:"reason,omitempty"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	QRImage        string    `json:"qr_image,omitempty"`
	At             time.Time `json:"at"`
}

type LinkRequest struct {
	SessionName string `json:"session_name" form:"session_name"`
}

type ISessionUsecase interface {
	RequestLink(ctx context.Context, organizationID, sessionName string) (Session, error)
	IssueQR(ctx context.Context, organizationID, sessionName, material string) (Session, error)
	ConfirmConnected(ctx context.Context, organizationID, sessionName, phoneNumber string) (Session, error)
	MarkDisconnected(ctx context.Context, organizationID, sessionName, reason string) (Session, error)
	Get(ctx context.Context, organizationID, sessionName string) (Session, error)
	List(ctx context.Context, organizationID string) ([]Session, error)
	// Owns is the authorization hook the subscription router uses to
	// decide whether an organization may join a session room.
	Owns(ctx context.Context, organizationID, sessionName string) bool
}
