// Wire protocol for the duel websocket.
//
// Both directions use the same envelope: {"type": string, "payload": object}.
// Client payloads are decoded into the typed structs below at the connection
// boundary; game action contents stay opaque (json.RawMessage) because the
// server relays them without interpreting game semantics.

package main

import (
	"encoding/json"
)

// Client → server message types
const (
	msgStartMatchmaking  = "START_MATCHMAKING"
	msgCancelMatchmaking = "CANCEL_MATCHMAKING"
	msgGameAction        = "GAME_ACTION"
	msgEndGame           = "END_GAME"
)

// Server → client message types
const (
	msgMatchFound       = "MATCH_FOUND"
	msgMatchmakingError = "MATCHMAKING_ERROR"
	msgRoomClosed       = "ROOM_CLOSED"
)

// Room close reasons
const (
	reasonOpponentLeft = "opponent_left"
	reasonGameEnded    = "game_ended"
	reasonError        = "error"
)

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type StartMatchmakingPayload struct {
	UserID   string   `json:"userId"`
	CourseID string   `json:"courseId"`
	UnitIDs  []string `json:"unitIds"`
}

type CancelMatchmakingPayload struct {
	UserID string `json:"userId"`
}

type GameActionPayload struct {
	RoomID  string          `json:"roomId"`
	Action  string          `json:"action"` // "ANSWER", "CHAT", "READY", ...; opaque to the server
	Payload json.RawMessage `json:"payload"`
}

type EndGamePayload struct {
	RoomID string `json:"roomId"`
}

// Opponent is the public player info echoed back on a match. Names and
// avatars are resolved by the dashboard's profile layer, not here.
type Opponent struct {
	ID string `json:"id"`
}

type MatchFoundPayload struct {
	RoomID   string   `json:"roomId"`
	Opponent Opponent `json:"opponent"`
}

type MatchmakingErrorPayload struct {
	Message string `json:"message"`
}

type GameActionRelay struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type RoomClosedPayload struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

// ServerMessage wraps an outbound payload in the shared envelope.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func matchFoundMessage(roomID, opponentID string) ServerMessage {
	return ServerMessage{
		Type: msgMatchFound,
		Payload: MatchFoundPayload{
			RoomID:   roomID,
			Opponent: Opponent{ID: opponentID},
		},
	}
}

func matchmakingErrorMessage(message string) ServerMessage {
	return ServerMessage{
		Type: msgMatchmakingError,
		Payload: MatchmakingErrorPayload{
			Message: message,
		},
	}
}

func gameActionMessage(action string, payload json.RawMessage) ServerMessage {
	return ServerMessage{
		Type: msgGameAction,
		Payload: GameActionRelay{
			Action:  action,
			Payload: payload,
		},
	}
}

func roomClosedMessage(roomID, reason string) ServerMessage {
	return ServerMessage{
		Type: msgRoomClosed,
		Payload: RoomClosedPayload{
			RoomID: roomID,
			Reason: reason,
		},
	}
}
