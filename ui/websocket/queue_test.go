package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainEvents "github.com/kolibrisuite/chatsync/domains/events"
)

func msgEvent(id string) domainEvents.Event {
	return domainEvents.Event{Kind: domainEvents.KindNewMessage, Payload: id}
}

func heartbeat() domainEvents.Event {
	return domainEvents.Event{Kind: domainEvents.KindHeartbeat}
}

func TestPushAndDrain(t *testing.T) {
	q := newOutQueue(4)

	assert.True(t, q.push(msgEvent("a")))
	assert.True(t, q.push(msgEvent("b")))

	got := q.drain()
	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Payload)
	assert.Equal(t, "b", got[1].Payload)
	assert.Zero(t, q.len())
	assert.Nil(t, q.drain())
}

func TestOverflowShedsHeartbeatFirst(t *testing.T) {
	q := newOutQueue(3)

	q.push(msgEvent("a"))
	q.push(heartbeat())
	q.push(msgEvent("b"))

	// Queue full: the heartbeat goes, not a message event.
	assert.False(t, q.push(msgEvent("c")))

	got := q.drain()
	assert.Len(t, got, 3)
	for _, evt := range got {
		assert.Equal(t, domainEvents.KindNewMessage, evt.Kind)
	}
	assert.EqualValues(t, 1, q.droppedCount())
}

func TestOverflowShedsOldestWhenNoHeartbeat(t *testing.T) {
	q := newOutQueue(2)

	q.push(msgEvent("a"))
	q.push(msgEvent("b"))
	assert.False(t, q.push(msgEvent("c")))

	got := q.drain()
	assert.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Payload)
	assert.Equal(t, "c", got[1].Payload)
}

func TestNotifySignalledOnPush(t *testing.T) {
	q := newOutQueue(2)
	q.push(msgEvent("a"))

	select {
	case <-q.notify:
	default:
		t.Fatal("expected notify signal after push")
	}
}
