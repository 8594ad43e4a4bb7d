// Package router maps live client connections to the set of
// (organization, session) rooms they receive events for. The router
// holds no cross-connection identity: a reconnecting client gets a
// fresh connection id and resubscribes from zero.
package router

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrUnauthorizedSubscription rejects a subscribe for a session the
// organization does not own. The subscription table is untouched.
var ErrUnauthorizedSubscription = errors.New("organization does not own this session")

// AuthorizeFunc answers whether an organization owns a session. The
// session state machine's registry backs it.
type AuthorizeFunc func(organizationID, sessionName string) bool

type Router struct {
	mu        sync.RWMutex
	rooms     map[string]map[string]struct{} // room key -> connection ids
	conns     map[string]map[string]struct{} // connection id -> room keys
	authorize AuthorizeFunc
}

func New(authorize AuthorizeFunc) *Router {
	return &Router{
		rooms:     make(map[string]map[string]struct{}),
		conns:     make(map[string]map[string]struct{}),
		authorize: authorize,
	}
}

func roomKey(organizationID, sessionName string) string {
	return organizationID + "|" + sessionName
}

// Subscribe joins a connection to a session room after the ownership
// check. Subscribing twice is a no-op.
func (r *Router) Subscribe(connectionID, organizationID, sessionName string) error {
	if r.authorize != nil && !r.authorize(organizationID, sessionName) {
		logrus.Warnf("[ROUTER] Rejected subscription of %s to %s/%s", connectionID, organizationID, sessionName)
		return ErrUnauthorizedSubscription
	}

	key := roomKey(organizationID, sessionName)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[key] == nil {
		r.rooms[key] = make(map[string]struct{})
	}
	r.rooms[key][connectionID] = struct{}{}

	if r.conns[connectionID] == nil {
		r.conns[connectionID] = make(map[string]struct{})
	}
	r.conns[connectionID][key] = struct{}{}

	logrus.Debugf("[ROUTER] %s subscribed to %s", connectionID, key)
	return nil
}

func (r *Router) Unsubscribe(connectionID, organizationID, sessionName string) {
	key := roomKey(organizationID, sessionName)

	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.rooms[key]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.rooms, key)
		}
	}
	if keys, ok := r.conns[connectionID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.conns, connectionID)
		}
	}
}

// RouteEvent returns the connections subscribed to a room. The slice
// is a copy; callers may deliver without holding any router state.
func (r *Router) RouteEvent(organizationID, sessionName string) []string {
	key := roomKey(organizationID, sessionName)

	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// OnConnectionClosed drops every room membership of a connection in
// one step. This is the only cleanup path, so memberships cannot
// leak.
func (r *Router) OnConnectionClosed(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, ok := r.conns[connectionID]
	if !ok {
		return
	}
	for key := range keys {
		if members, ok := r.rooms[key]; ok {
			delete(members, connectionID)
			if len(members) == 0 {
				delete(r.rooms, key)
			}
		}
	}
	delete(r.conns, connectionID)

	logrus.Debugf("[ROUTER] Connection %s closed, %d memberships removed", connectionID, len(keys))
}

// Rooms reports how many rooms currently have subscribers.
func (r *Router) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Connections reports how many connections hold subscriptions.
func (r *Router) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
