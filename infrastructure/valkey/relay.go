package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"

	domainEvents "github.com/kolibrisuite/chatsync/domains/events"
)

// envelope wraps a live event with the publishing node's identity so
// subscribers can ignore their own publications and avoid loops.
type envelope struct {
	SenderID string             `json:"sender_id"`
	Event    domainEvents.Event `json:"event"`
}

// EventRelay propagates live events between nodes over a pub/sub
// channel. Subscribers on other nodes receive events for rooms whose
// connections live there.
type EventRelay struct {
	client   *Client
	channel  string
	serverID string
}

func NewEventRelay(client *Client, serverID string) *EventRelay {
	return &EventRelay{
		client:   client,
		channel:  client.Key("events"),
		serverID: serverID,
	}
}

// Publish sends one event to peer nodes. The local node's delivery
// already happened; the envelope's sender id keeps the event from
// echoing back.
func (r *EventRelay) Publish(ctx context.Context, evt domainEvents.Event) error {
	data, err := json.Marshal(envelope{SenderID: r.serverID, Event: evt})
	if err != nil {
		return fmt.Errorf("failed to marshal relay envelope: %w", err)
	}

	cmd := r.client.Inner().B().Publish().Channel(r.channel).Message(string(data)).Build()
	if err := r.client.Inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// StartSubscriber listens for peer publications and hands each
// foreign event to deliver. Runs until ctx is cancelled.
func (r *EventRelay) StartSubscriber(ctx context.Context, deliver func(evt domainEvents.Event)) {
	logrus.Infof("[RELAY] Subscribing to %s as %s", r.channel, r.serverID)

	go func() {
		err := r.client.Inner().Receive(ctx, r.client.Inner().B().Subscribe().Channel(r.channel).Build(), func(msg valkeylib.PubSubMessage) {
			var env envelope
			if err := json.Unmarshal([]byte(msg.Message), &env); err != nil {
				logrus.WithError(err).Warn("[RELAY] Dropping malformed envelope")
				return
			}
			if env.SenderID == r.serverID {
				return
			}
			deliver(env.Event)
		})
		if err != nil && ctx.Err() == nil {
			logrus.Errorf("[RELAY] Subscriber stopped: %v", err)
		}
	}()
}
