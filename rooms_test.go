package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireMessage pops the next queued outbound message for this client.
// Manager calls are synchronous, so anything sent is already buffered.
func requireMessage(t *testing.T, c *Client) ServerMessage {
	t.Helper()

	select {
	case msg := <-c.send:
		sm, ok := msg.(ServerMessage)
		require.True(t, ok, "unexpected outbound message %T", msg)
		return sm
	default:
		t.Fatal("expected an outbound message, got none")
		return ServerMessage{}
	}
}

func requireNoMessage(t *testing.T, c *Client) {
	t.Helper()

	select {
	case msg := <-c.send:
		t.Fatalf("expected no outbound message, got %#v", msg)
	default:
	}
}

func newTestRoomManager() (*roomManager, *connRegistry, *Config) {
	cfg := &Config{}
	reg := newConnRegistry()
	return newRoomManager(cfg, reg), reg, cfg
}

// registeredPlayer builds a queued player whose connection is registered,
// as it would be by the time a match happens.
func registeredPlayer(reg *connRegistry, userID, courseID string, unitIDs ...string) *queuedPlayer {
	p := waiting(userID, courseID, unitIDs...)
	reg.register(p.client)
	return p
}

func TestRoomManagerCreate(t *testing.T) {
	rm, reg, _ := newTestRoomManager()

	alice := registeredPlayer(reg, "alice", "biology", "unit1")
	bob := registeredPlayer(reg, "bob", "biology", "unit1")

	room := rm.create(alice, bob)
	require.NotNil(t, room)
	assert.NotEmpty(t, room.id)
	assert.False(t, room.closed)

	// Exactly two members, and both resolvable.
	assert.True(t, room.has("alice"))
	assert.True(t, room.has("bob"))
	assert.False(t, room.has("carol"))

	if got, ok := rm.roomFor("alice"); assert.True(t, ok) {
		assert.Equal(t, room, got)
	}
	assert.Equal(t, room, rm.get(room.id))
	assert.Equal(t, 1, rm.count())
	assert.Equal(t, 1, rm.matchesMade)

	assert.Equal(t, roleInRoom, alice.client.role)
	assert.Equal(t, roleInRoom, bob.client.role)

	// Both players hear about the match, each seeing the other as opponent.
	msg := requireMessage(t, alice.client)
	require.Equal(t, msgMatchFound, msg.Type)
	found := msg.Payload.(MatchFoundPayload)
	assert.Equal(t, room.id, found.RoomID)
	assert.Equal(t, "bob", found.Opponent.ID)

	msg = requireMessage(t, bob.client)
	require.Equal(t, msgMatchFound, msg.Type)
	found = msg.Payload.(MatchFoundPayload)
	assert.Equal(t, room.id, found.RoomID)
	assert.Equal(t, "alice", found.Opponent.ID)
}

func TestRoomManagerCloseNotifiesMembers(t *testing.T) {
	rm, reg, _ := newTestRoomManager()

	alice := registeredPlayer(reg, "alice", "biology", "unit1")
	bob := registeredPlayer(reg, "bob", "biology", "unit1")

	room := rm.create(alice, bob)
	requireMessage(t, alice.client)
	requireMessage(t, bob.client)

	require.True(t, rm.close(room.id, reasonGameEnded))

	for _, c := range []*Client{alice.client, bob.client} {
		msg := requireMessage(t, c)
		require.Equal(t, msgRoomClosed, msg.Type)
		closed := msg.Payload.(RoomClosedPayload)
		assert.Equal(t, room.id, closed.RoomID)
		assert.Equal(t, reasonGameEnded, closed.Reason)
		assert.Equal(t, roleIdle, c.role)
	}

	assert.Nil(t, rm.get(room.id))
	_, ok := rm.roomFor("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, rm.count())

	// Double close and closing an unknown room are no-ops.
	assert.False(t, rm.close(room.id, reasonGameEnded))
	assert.False(t, rm.close("game_missing", reasonError))
	requireNoMessage(t, alice.client)
	requireNoMessage(t, bob.client)
}

func TestRoomManagerCloseSkipsDisconnectedMember(t *testing.T) {
	rm, reg, _ := newTestRoomManager()

	alice := registeredPlayer(reg, "alice", "biology", "unit1")
	bob := registeredPlayer(reg, "bob", "biology", "unit1")

	room := rm.create(alice, bob)
	requireMessage(t, alice.client)
	requireMessage(t, bob.client)

	// alice's connection dropped before the close; cleanup must still run
	// and only bob gets notified.
	reg.unregister(alice.client.id)

	require.True(t, rm.close(room.id, reasonOpponentLeft))

	requireNoMessage(t, alice.client)

	msg := requireMessage(t, bob.client)
	require.Equal(t, msgRoomClosed, msg.Type)
	assert.Equal(t, reasonOpponentLeft, msg.Payload.(RoomClosedPayload).Reason)
}

func TestRelayDeliversToPeerOnly(t *testing.T) {
	rm, reg, _ := newTestRoomManager()

	alice := registeredPlayer(reg, "alice", "biology", "unit1")
	bob := registeredPlayer(reg, "bob", "biology", "unit1")

	room := rm.create(alice, bob)
	requireMessage(t, alice.client)
	requireMessage(t, bob.client)

	payload := json.RawMessage(`{"answer":"b"}`)
	require.NoError(t, rm.relay(room.id, "alice", "ANSWER", payload))

	msg := requireMessage(t, bob.client)
	require.Equal(t, msgGameAction, msg.Type)
	relayed := msg.Payload.(GameActionRelay)
	assert.Equal(t, "ANSWER", relayed.Action)
	assert.JSONEq(t, `{"answer":"b"}`, string(relayed.Payload))

	// Never echoed back to the sender.
	requireNoMessage(t, alice.client)
}

func TestRelayIsolationBetweenRooms(t *testing.T) {
	rm, reg, _ := newTestRoomManager()

	alice := registeredPlayer(reg, "alice", "biology", "unit1")
	bob := registeredPlayer(reg, "bob", "biology", "unit1")
	carol := registeredPlayer(reg, "carol", "physics", "unit1")
	dave := registeredPlayer(reg, "dave", "physics", "unit1")

	room1 := rm.create(alice, bob)
	rm.create(carol, dave)
	for _, c := range []*Client{alice.client, bob.client, carol.client, dave.client} {
		requireMessage(t, c)
	}

	require.NoError(t, rm.relay(room1.id, "alice", "READY", nil))

	requireMessage(t, bob.client)
	requireNoMessage(t, carol.client)
	requireNoMessage(t, dave.client)
}

func TestRelayErrors(t *testing.T) {
	rm, reg, _ := newTestRoomManager()

	alice := registeredPlayer(reg, "alice", "biology", "unit1")
	bob := registeredPlayer(reg, "bob", "biology", "unit1")

	room := rm.create(alice, bob)
	requireMessage(t, alice.client)
	requireMessage(t, bob.client)

	assert.ErrorIs(t, rm.relay("game_missing", "alice", "ANSWER", nil), errRoomNotFound)
	assert.ErrorIs(t, rm.relay(room.id, "carol", "ANSWER", nil), errSenderNotMember)

	rm.close(room.id, reasonGameEnded)
	assert.ErrorIs(t, rm.relay(room.id, "alice", "ANSWER", nil), errRoomNotFound)
}
