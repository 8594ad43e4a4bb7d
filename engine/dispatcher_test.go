package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainEvents "github.com/kolibrisuite/chatsync/domains/events"
	domainMessage "github.com/kolibrisuite/chatsync/domains/message"
	domainSession "github.com/kolibrisuite/chatsync/domains/session"
	"github.com/kolibrisuite/chatsync/engine/router"
	"github.com/kolibrisuite/chatsync/pkg/evtworker"
)

type captureSink struct {
	mu     sync.Mutex
	events map[string][]domainEvents.Event
}

func newCaptureSink() *captureSink {
	return &captureSink{events: make(map[string][]domainEvents.Event)}
}

func (s *captureSink) Deliver(connectionID string, evt domainEvents.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[connectionID] = append(s.events[connectionID], evt)
}

func (s *captureSink) forConn(connectionID string) []domainEvents.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domainEvents.Event(nil), s.events[connectionID]...)
}

type fakeMessages struct {
	mu      sync.Mutex
	results map[string]domainMessage.IngestResult
	calls   int
}

func (f *fakeMessages) IngestInbound(ctx context.Context, organizationID string, evt domainMessage.InboundEvent) (domainMessage.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if r, ok := f.results[evt.MessageID]; ok {
		return r, nil
	}
	return domainMessage.IngestResult{
		Message: domainMessage.Message{
			MessageID:      evt.MessageID,
			OrganizationID: organizationID,
			SessionName:    evt.SessionName,
		},
	}, nil
}

func (f *fakeMessages) Send(ctx context.Context, organizationID string, request domainMessage.SendRequest) (domainMessage.Message, error) {
	return domainMessage.Message{}, nil
}

func (f *fakeMessages) FetchHistory(ctx context.Context, request domainMessage.HistoryRequest) ([]domainMessage.Message, error) {
	return nil, nil
}

func (f *fakeMessages) UpdateStatus(ctx context.Context, organizationID, messageID string, status domainMessage.Status) (domainMessage.Message, error) {
	return domainMessage.Message{}, nil
}

func (f *fakeMessages) Search(ctx context.Context, organizationID, query string, limit int) ([]domainMessage.Message, error) {
	return nil, nil
}

type fakeSessions struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSessions) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *fakeSessions) RequestLink(ctx context.Context, organizationID, sessionName string) (domainSession.Session, error) {
	f.record("link")
	return domainSession.Session{}, nil
}

func (f *fakeSessions) IssueQR(ctx context.Context, organizationID, sessionName, material string) (domainSession.Session, error) {
	f.record("qr:" + material)
	return domainSession.Session{}, nil
}

func (f *fakeSessions) ConfirmConnected(ctx context.Context, organizationID, sessionName, phoneNumber string) (domainSession.Session, error) {
	f.record("connected:" + phoneNumber)
	return domainSession.Session{}, nil
}

func (f *fakeSessions) MarkDisconnected(ctx context.Context, organizationID, sessionName, reason string) (domainSession.Session, error) {
	f.record("disconnected:" + reason)
	return domainSession.Session{}, nil
}

func (f *fakeSessions) Get(ctx context.Context, organizationID, sessionName string) (domainSession.Session, error) {
	return domainSession.Session{}, nil
}

func (f *fakeSessions) List(ctx context.Context, organizationID string) ([]domainSession.Session, error) {
	return nil, nil
}

func (f *fakeSessions) Owns(ctx context.Context, organizationID, sessionName string) bool {
	return true
}

func newTestDispatcher(t *testing.T, sink Sink, messages domainMessage.IMessageUsecase, sessions domainSession.ISessionUsecase) *Dispatcher {
	t.Helper()
	pool := evtworker.NewPool(4, 16)
	rtr := router.New(func(orgID, session string) bool {
		return sessions.Owns(context.Background(), orgID, session)
	})
	d := NewDispatcher(pool, rtr, messages, sessions, sink)
	d.Start(context.Background())
	t.Cleanup(d.Stop)
	return d
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestInboundMessageFansOutToSubscribers(t *testing.T) {
	sink := newCaptureSink()
	messages := &fakeMessages{}
	d := newTestDispatcher(t, sink, messages, &fakeSessions{})

	require.NoError(t, d.Subscribe("conn-1", "org-a", "main"))
	require.NoError(t, d.Subscribe("conn-2", "org-a", "main"))
	require.NoError(t, d.Subscribe("conn-3", "org-a", "other"))

	ok := d.IngestInboundMessage("org-a", domainMessage.InboundEvent{
		MessageID:   "MSG-1",
		SessionName: "main",
		From:        "14155550100@s.whatsapp.net",
		Content:     `{"text":"hello"}`,
	})
	require.True(t, ok)

	waitFor(t, func() bool { return len(sink.forConn("conn-1")) == 1 })
	waitFor(t, func() bool { return len(sink.forConn("conn-2")) == 1 })

	evt := sink.forConn("conn-1")[0]
	assert.Equal(t, domainEvents.KindNewMessage, evt.Kind)
	assert.Equal(t, "main", evt.SessionName)
	assert.Empty(t, sink.forConn("conn-3"))
}

func TestDuplicateMessageIsNotFannedOut(t *testing.T) {
	sink := newCaptureSink()
	messages := &fakeMessages{results: map[string]domainMessage.IngestResult{
		"MSG-DUP": {Duplicate: true},
	}}
	d := newTestDispatcher(t, sink, messages, &fakeSessions{})

	require.NoError(t, d.Subscribe("conn-1", "org-a", "main"))

	require.True(t, d.IngestInboundMessage("org-a", domainMessage.InboundEvent{
		MessageID:   "MSG-DUP",
		SessionName: "main",
	}))

	waitFor(t, func() bool {
		messages.mu.Lock()
		defer messages.mu.Unlock()
		return messages.calls == 1
	})
	assert.Empty(t, sink.forConn("conn-1"))
}

func TestNewContactEmitsSecondEvent(t *testing.T) {
	sink := newCaptureSink()
	messages := &fakeMessages{results: map[string]domainMessage.IngestResult{
		"MSG-2": {
			Message: domainMessage.Message{
				MessageID:         "MSG-2",
				SessionName:       "main",
				ContactIdentifier: "14155550100",
			},
			ContactCreated: true,
			ContactID:      "contact-1",
		},
	}}
	d := newTestDispatcher(t, sink, messages, &fakeSessions{})

	require.NoError(t, d.Subscribe("conn-1", "org-a", "main"))

	require.True(t, d.IngestInboundMessage("org-a", domainMessage.InboundEvent{
		MessageID:   "MSG-2",
		SessionName: "main",
	}))

	waitFor(t, func() bool { return len(sink.forConn("conn-1")) == 2 })

	got := sink.forConn("conn-1")
	assert.Equal(t, domainEvents.KindNewMessage, got[0].Kind)
	assert.Equal(t, domainEvents.KindNewContact, got[1].Kind)
}

func TestSessionTransitionDrivesUsecase(t *testing.T) {
	sessions := &fakeSessions{}
	d := newTestDispatcher(t, newCaptureSink(), &fakeMessages{}, sessions)

	require.True(t, d.IngestSessionTransition("org-a", "main", domainSession.TransitionQRIssued, "qr-material"))
	require.True(t, d.IngestSessionTransition("org-a", "main", domainSession.TransitionConnected, "+14155550100"))

	waitFor(t, func() bool {
		sessions.mu.Lock()
		defer sessions.mu.Unlock()
		return len(sessions.calls) == 2
	})

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	// Same organization shard, so the usecase sees the calls in order.
	assert.Equal(t, []string{"qr:qr-material", "connected:+14155550100"}, sessions.calls)
}

func TestHandleTransitionFansOutStatusEvent(t *testing.T) {
	sink := newCaptureSink()
	d := newTestDispatcher(t, sink, &fakeMessages{}, &fakeSessions{})

	require.NoError(t, d.Subscribe("conn-1", "org-a", "main"))

	d.HandleTransition(domainSession.TransitionEvent{
		OrganizationID: "org-a",
		SessionName:    "main",
		From:           domainSession.StatusConnecting,
		To:             domainSession.StatusQRReady,
		At:             time.Now(),
	})

	waitFor(t, func() bool { return len(sink.forConn("conn-1")) == 1 })
	assert.Equal(t, domainEvents.KindSessionStatus, sink.forConn("conn-1")[0].Kind)
}

func TestClosedConnectionReceivesNothing(t *testing.T) {
	sink := newCaptureSink()
	d := newTestDispatcher(t, sink, &fakeMessages{}, &fakeSessions{})

	require.NoError(t, d.Subscribe("conn-1", "org-a", "main"))
	d.OnConnectionClosed("conn-1")

	require.True(t, d.IngestInboundMessage("org-a", domainMessage.InboundEvent{
		MessageID:   "MSG-3",
		SessionName: "main",
	}))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, sink.forConn("conn-1"))
}
