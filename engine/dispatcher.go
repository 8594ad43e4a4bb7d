// Package engine ties the ingest collaborators to the fan-out path.
// Every inbound notification is serialized onto its organization's
// shard before touching any usecase, and every resulting event leaves
// through the subscription router exactly once per local subscriber.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	domainEvents "github.com/kolibrisuite/chatsync/domains/events"
	domainMessage "github.com/kolibrisuite/chatsync/domains/message"
	domainSession "github.com/kolibrisuite/chatsync/domains/session"
	"github.com/kolibrisuite/chatsync/engine/router"
	"github.com/kolibrisuite/chatsync/pkg/evtworker"
)

// Sink delivers one event to one local connection. The websocket hub
// implements it; delivery must not block the caller.
type Sink interface {
	Deliver(connectionID string, evt domainEvents.Event)
}

// Relay publishes events to peer nodes so subscribers connected
// elsewhere still receive them. Optional.
type Relay interface {
	Publish(ctx context.Context, evt domainEvents.Event) error
}

type Dispatcher struct {
	pool     *evtworker.Pool
	router   *router.Router
	messages domainMessage.IMessageUsecase
	sessions domainSession.ISessionUsecase
	sink     Sink
	relay    Relay
}

func NewDispatcher(
	pool *evtworker.Pool,
	rtr *router.Router,
	messages domainMessage.IMessageUsecase,
	sessions domainSession.ISessionUsecase,
	sink Sink,
) *Dispatcher {
	return &Dispatcher{
		pool:     pool,
		router:   rtr,
		messages: messages,
		sessions: sessions,
		sink:     sink,
	}
}

// SetRelay enables cross-node publication. Must be called before
// Start.
func (d *Dispatcher) SetRelay(relay Relay) {
	d.relay = relay
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.pool.Start(ctx)
}

func (d *Dispatcher) Stop() {
	d.pool.Stop()
}

// IngestInboundMessage queues one inbound message event on the
// organization's shard. Returns false when the shard queue is full,
// so the transport collaborator can retry with backoff.
func (d *Dispatcher) IngestInboundMessage(organizationID string, evt domainMessage.InboundEvent) bool {
	return d.pool.TryDispatch(evtworker.Job{
		OrganizationID: organizationID,
		Handler: func(ctx context.Context) error {
			result, err := d.messages.IngestInbound(ctx, organizationID, evt)
			if err != nil {
				return err
			}
			if result.Duplicate {
				logrus.Debugf("[DISPATCHER] Duplicate message %s for org %s, no fan-out", evt.MessageID, organizationID)
				return nil
			}

			d.Broadcast(ctx, domainEvents.Event{
				Kind:           domainEvents.KindNewMessage,
				OrganizationID: organizationID,
				SessionName:    result.Message.SessionName,
				Payload:        result.Message,
				At:             time.Now(),
			})

			if result.ContactCreated {
				d.Broadcast(ctx, domainEvents.Event{
					Kind:           domainEvents.KindNewContact,
					OrganizationID: organizationID,
					SessionName:    result.Message.SessionName,
					Payload: map[string]string{
						"contact_id": result.ContactID,
						"identifier": result.Message.ContactIdentifier,
						"push_name":  evt.PushName,
					},
					At: time.Now(),
				})
			}
			return nil
		},
	})
}

// IngestSessionTransition queues one lifecycle notification on the
// organization's shard. The detail argument carries the QR material,
// phone number or disconnect reason depending on the kind. The
// session usecase emits the fan-out event itself on success.
func (d *Dispatcher) IngestSessionTransition(organizationID, sessionName string, kind domainSession.TransitionKind, detail string) bool {
	return d.pool.TryDispatch(evtworker.Job{
		OrganizationID: organizationID,
		Handler: func(ctx context.Context) error {
			var err error
			switch kind {
			case domainSession.TransitionLinkRequested:
				_, err = d.sessions.RequestLink(ctx, organizationID, sessionName)
			case domainSession.TransitionQRIssued:
				_, err = d.sessions.IssueQR(ctx, organizationID, sessionName, detail)
			case domainSession.TransitionConnected:
				_, err = d.sessions.ConfirmConnected(ctx, organizationID, sessionName, detail)
			case domainSession.TransitionDisconnected:
				_, err = d.sessions.MarkDisconnected(ctx, organizationID, sessionName, detail)
			default:
				return fmt.Errorf("unknown transition kind: %s", kind)
			}
			return err
		},
	})
}

// HandleTransition converts a successful session transition into a
// live event. Wired as the session usecase's OnTransition hook.
func (d *Dispatcher) HandleTransition(evt domainSession.TransitionEvent) {
	d.Broadcast(context.Background(), domainEvents.Event{
		Kind:           domainEvents.KindSessionStatus,
		OrganizationID: evt.OrganizationID,
		SessionName:    evt.SessionName,
		Payload:        evt,
		At:             evt.At,
	})
}

// Broadcast delivers an event to local subscribers and, when a relay
// is configured, to peer nodes.
func (d *Dispatcher) Broadcast(ctx context.Context, evt domainEvents.Event) {
	d.DeliverLocal(evt)

	if d.relay != nil {
		if err := d.relay.Publish(ctx, evt); err != nil {
			logrus.WithError(err).Warn("[DISPATCHER] Relay publish failed")
		}
	}
}

// DeliverLocal fans an event out to this node's subscribers only.
// The relay receive path uses it so relayed events are never
// re-published.
func (d *Dispatcher) DeliverLocal(evt domainEvents.Event) {
	targets := d.router.RouteEvent(evt.OrganizationID, evt.SessionName)
	for _, connectionID := range targets {
		d.sink.Deliver(connectionID, evt)
	}
	if len(targets) > 0 {
		logrus.Debugf("[DISPATCHER] Delivered %s to %d connections in %s/%s", evt.Kind, len(targets), evt.OrganizationID, evt.SessionName)
	}
}

// Subscribe joins a connection to a session room. Ownership is
// checked by the router's authorize hook.
func (d *Dispatcher) Subscribe(connectionID, organizationID, sessionName string) error {
	return d.router.Subscribe(connectionID, organizationID, sessionName)
}

func (d *Dispatcher) Unsubscribe(connectionID, organizationID, sessionName string) {
	d.router.Unsubscribe(connectionID, organizationID, sessionName)
}

// OnConnectionClosed removes every subscription of a connection.
func (d *Dispatcher) OnConnectionClosed(connectionID string) {
	d.router.OnConnectionClosed(connectionID)
}

type Stats struct {
	Pool        evtworker.PoolStats `json:"pool"`
	Rooms       int                 `json:"rooms"`
	Connections int                 `json:"connections"`
}

func (d *Dispatcher) GetStats() Stats {
	return Stats{
		Pool:        d.pool.GetStats(),
		Rooms:       d.router.Rooms(),
		Connections: d.router.Connections(),
	}
}
