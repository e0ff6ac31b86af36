package main

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	errRoomNotFound    = errors.New("room not found")
	errSenderNotMember = errors.New("sender is not a member of this room")
)

type roomMember struct {
	userID string
	client *Client
}

// gameRoom is one live 2-player duel session. Membership is fixed at creation
// and the room only exists while both slots are filled; the first disconnect
// or game-end closes it.
type gameRoom struct {
	id        string
	members   [2]roomMember
	createdAt time.Time
	closed    bool
}

func (r *gameRoom) has(userID string) bool {
	return r.members[0].userID == userID || r.members[1].userID == userID
}

// other returns the member opposite the given player.
func (r *gameRoom) other(userID string) (roomMember, bool) {
	switch userID {
	case r.members[0].userID:
		return r.members[1], true
	case r.members[1].userID:
		return r.members[0], true
	}
	return roomMember{}, false
}

// roomManager owns the room table and the player → room reverse index.
//
// Not safe for concurrent use; owned by the GameServer event loop.
type roomManager struct {
	cfg         *Config
	reg         *connRegistry
	rooms       map[string]*gameRoom
	playerRoom  map[string]string
	matchesMade int
}

func newRoomManager(cfg *Config, reg *connRegistry) *roomManager {
	return &roomManager{
		cfg:        cfg,
		reg:        reg,
		rooms:      make(map[string]*gameRoom),
		playerRoom: make(map[string]string),
	}
}

// create pairs two matched players into a fresh room, flips their connection
// roles to in_room, and notifies each with MATCH_FOUND carrying the room ID
// and the opponent's ID.
func (m *roomManager) create(a, b *queuedPlayer) *gameRoom {
	room := &gameRoom{
		id: "game_" + uuid.NewString(),
		members: [2]roomMember{
			{userID: a.userID, client: a.client},
			{userID: b.userID, client: b.client},
		},
		createdAt: time.Now(),
	}

	m.rooms[room.id] = room
	m.playerRoom[a.userID] = room.id
	m.playerRoom[b.userID] = room.id
	m.matchesMade++

	m.reg.setRole(m.cfg, a.client.id, roleInRoom)
	m.reg.setRole(m.cfg, b.client.id, roleInRoom)

	a.client.trySend(matchFoundMessage(room.id, b.userID))
	b.client.trySend(matchFoundMessage(room.id, a.userID))

	logf(m.cfg, "DUEL: Matched %q and %q into %s (course %s)", a.userID, b.userID, room.id, a.courseID)

	return room
}

// close tears down a room, notifying any still-connected member with the
// reason and releasing both players back to idle. Idempotent: closing a room
// twice, or a room that never existed, is a no-op.
func (m *roomManager) close(roomID, reason string) bool {
	room, ok := m.rooms[roomID]
	if !ok || room.closed {
		return false
	}
	room.closed = true
	delete(m.rooms, roomID)

	for _, member := range room.members {
		delete(m.playerRoom, member.userID)

		// Skip members whose connection is already gone; an unreachable
		// peer must never block local cleanup.
		if m.reg.get(member.client.id) == nil {
			continue
		}
		m.reg.setRole(m.cfg, member.client.id, roleIdle)
		member.client.trySend(roomClosedMessage(roomID, reason))
	}

	logf(m.cfg, "DUEL: Closed room %s (%s)", roomID, reason)

	return true
}

// relay forwards a game action to the sender's opponent, and only to them.
// The action and payload are passed through untouched.
func (m *roomManager) relay(roomID, senderID, action string, payload json.RawMessage) error {
	room, ok := m.rooms[roomID]
	if !ok || room.closed {
		return errRoomNotFound
	}

	peer, ok := room.other(senderID)
	if !ok {
		return errSenderNotMember
	}

	peer.client.trySend(gameActionMessage(action, payload))
	return nil
}

func (m *roomManager) get(roomID string) *gameRoom {
	return m.rooms[roomID]
}

func (m *roomManager) roomFor(userID string) (*gameRoom, bool) {
	roomID, ok := m.playerRoom[userID]
	if !ok {
		return nil, false
	}
	room, ok := m.rooms[roomID]
	return room, ok
}

// roomForClient finds the open room this connection is a member of, if any.
func (m *roomManager) roomForClient(c *Client) (*gameRoom, bool) {
	for _, room := range m.rooms {
		if room.members[0].client == c || room.members[1].client == c {
			return room, true
		}
	}
	return nil, false
}

func (m *roomManager) count() int {
	return len(m.rooms)
}
