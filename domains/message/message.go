package message

import (
	"context"
	"fmt"
	"time"

	"github.com/kolibrisuite/chatsync/pkg/content"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// CanProgress reports whether a status update is legal: the enum
// only moves forward, except that any status may drop to failed.
func CanProgress(from, to Status) bool {
	if to == StatusFailed {
		return true
	}
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

// Message is the normalized record produced once at ingestion time.
// MessageID is the natural key and the sole deduplication key; after
// creation only Status mutates.
type Message struct {
	MessageID         string            `json:"message_id"`
	OrganizationID    string            `json:"organization_id"`
	SessionName       string            `json:"session_name"`
	Direction         Direction         `json:"direction"`
	FromIdentifier    string            `json:"from_identifier"`
	ToIdentifier      string            `json:"to_identifier"`
	ContactIdentifier string            `json:"contact_identifier"`
	Kind              string            `json:"kind"`
	RawContent        string            `json:"raw_content"`
	ResolvedPreview   string            `json:"resolved_preview"`
	MediaKind         content.MediaKind `json:"media_kind"`
	Status            Status            `json:"status"`
	SentAt            time.Time         `json:"sent_at"`
}

// InboundEvent is the raw "a message arrived" notification handed
// over by the external transport collaborator.
type InboundEvent struct {
	MessageID   string    `json:"message_id"`
	SessionName string    `json:"session_name"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Kind        string    `json:"kind"`
	Content     string    `json:"content"`
	PushName    string    `json:"push_name,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

type SendRequest struct {
	SessionName  string `json:"session_name" form:"session_name"`
	ToIdentifier string `json:"to_identifier" form:"to_identifier"`
	Content      string `json:"content" form:"content"`
}

type HistoryRequest struct {
	OrganizationID string `json:"organization_id"`
	Identifier     string `json:"identifier" form:"identifier"`
	Page           int    `json:"page" form:"page"`
	Limit          int    `json:"limit" form:"limit"`
}

// IngestResult reports what one inbound event did to the stores.
type IngestResult struct {
	Message        Message `json:"message"`
	Duplicate      bool    `json:"duplicate"`
	ContactCreated bool    `json:"contact_created"`
	ContactID      string  `json:"contact_id,omitempty"`
}

type IMessageUsecase interface {
	IngestInbound(ctx context.Context, organizationID string, evt InboundEvent) (IngestResult, error)
	Send(ctx context.Context, organizationID string, request SendRequest) (Message, error)
	FetchHistory(ctx context.Context, request HistoryRequest) ([]Message, error)
	// Search matches against the resolved preview, so a message whose
	// payload resolved to empty is never found by text search.
	Search(ctx context.Context, organizationID, query string, limit int) ([]Message, error)
	UpdateStatus(ctx context.Context, organizationID, messageID string, status Status) (Message, error)
}

// Gateway is the outbound send collaborator. It owns the wire
// protocol of the external chat network; the core only consumes the
// assigned message id.
type Gateway interface {
	Send(ctx context.Context, sessionName, toIdentifier, content string) (messageID string, err error)
}

// SendError surfaces a gateway failure to the caller. The message is
// still persisted with StatusFailed.
type SendError struct {
	Reason string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %s", e.Reason)
}
