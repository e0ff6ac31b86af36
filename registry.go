package main

import (
	"github.com/gorilla/websocket"
)

type role string

const (
	roleIdle   role = "idle"
	roleQueued role = "queued"
	roleInRoom role = "in_room"
)

// Client is one live websocket connection. The userID is bound on the first
// matchmaking request; until then the connection is anonymous.
type Client struct {
	id     string
	userID string
	role   role
	conn   *websocket.Conn
	send   chan any
}

// trySend queues a message for delivery without blocking the event loop.
// A full buffer means the write pump has stalled; the message is dropped and
// the caller may decide the connection is dead.
func (c *Client) trySend(msg any) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// connRegistry maps connection IDs to their clients and tracks each
// connection's current role in the player lifecycle (idle → queued → in_room).
//
// Not safe for concurrent use; it is owned by the GameServer event loop and
// only ever touched between channel receives.
type connRegistry struct {
	conns map[string]*Client
}

func newConnRegistry() *connRegistry {
	return &connRegistry{
		conns: make(map[string]*Client),
	}
}

func (r *connRegistry) register(c *Client) {
	c.role = roleIdle
	r.conns[c.id] = c
}

// unregister removes the connection and returns it, or nil if it was already
// gone. Duplicate disconnect events land on the nil branch and are no-ops.
func (r *connRegistry) unregister(connID string) *Client {
	c, ok := r.conns[connID]
	if !ok {
		return nil
	}
	delete(r.conns, connID)
	return c
}

func (r *connRegistry) get(connID string) *Client {
	return r.conns[connID]
}

// setRole updates a connection's role. An unknown ID means the connection
// already disconnected mid-event; that race is benign, so just log it.
func (r *connRegistry) setRole(cfg *Config, connID string, ro role) {
	c, ok := r.conns[connID]
	if !ok {
		logf(cfg, "DUEL: setRole on unknown connection %s (already disconnected?)", connID)
		return
	}
	c.role = ro
}

func (r *connRegistry) count() int {
	return len(r.conns)
}
