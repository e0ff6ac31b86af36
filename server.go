// GameServer is the matchmaking and duel session core.
//
// All queue, room, and registry state is owned by a single event loop
// goroutine. Every incoming event (connect, disconnect, client message,
// stats read) is funneled through one serialized channel and handled to
// completion before the next one starts, so the matchmaking scan, the pair
// removal, and room teardown never interleave. Socket delivery rides on
// per-client buffered send channels drained by the write pumps, after the
// authoritative state change.

package main

import (
	"encoding/json"
	"time"
)

type connectEvent struct {
	client *Client
}

type disconnectEvent struct {
	client *Client
}

type clientMessageEvent struct {
	client *Client
	env    Envelope
}

type statsRequest struct {
	reply chan DuelStats
}

// DuelStats is the diagnostics snapshot served on /stats.
type DuelStats struct {
	Connections int `json:"connections"`
	Queued      int `json:"queued"`
	OpenRooms   int `json:"openRooms"`
	MatchesMade int `json:"matchesMade"`
}

type GameServer struct {
	cfg    *Config
	reg    *connRegistry
	queue  *matchQueue
	rooms  *roomManager
	events chan any
	done   chan struct{}
}

func newGameServer(cfg *Config) *GameServer {
	reg := newConnRegistry()
	return &GameServer{
		cfg:    cfg,
		reg:    reg,
		queue:  newMatchQueue(cfg.queueLimit),
		rooms:  newRoomManager(cfg, reg),
		events: make(chan any, 64),
		done:   make(chan struct{}),
	}
}

func (s *GameServer) run() {
	for {
		select {
		case ev := <-s.events:
			s.dispatch(ev)
		case <-s.done:
			s.closeAll()
			return
		}
	}
}

// post hands an event to the loop, giving up if the server has stopped.
func (s *GameServer) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *GameServer) Stop() {
	close(s.done)
}

func (s *GameServer) dispatch(ev any) {
	switch ev := ev.(type) {
	case connectEvent:
		s.handleConnect(ev.client)
	case disconnectEvent:
		s.handleDisconnect(ev.client)
	case clientMessageEvent:
		s.handleMessage(ev.client, ev.env)
	case statsRequest:
		ev.reply <- DuelStats{
			Connections: s.reg.count(),
			Queued:      s.queue.size(),
			OpenRooms:   s.rooms.count(),
			MatchesMade: s.rooms.matchesMade,
		}
	}
}

func (s *GameServer) handleConnect(c *Client) {
	s.reg.register(c)
	logf(s.cfg, "DUEL: Client %s connected", c.id)
}

// handleDisconnect is the cleanup supervisor: a dropped connection is purged
// from the queue, and any room it occupied is closed with the peer notified.
// Duplicate disconnect events for the same connection are no-ops.
func (s *GameServer) handleDisconnect(c *Client) {
	if s.reg.unregister(c.id) == nil {
		return
	}
	close(c.send)

	if p := s.queue.cancelClient(c); p != nil {
		logf(s.cfg, "DUEL: Client %s disconnected while queued as %q", c.id, p.userID)
	}

	if room, ok := s.rooms.roomForClient(c); ok {
		s.rooms.close(room.id, reasonOpponentLeft)
	}

	logf(s.cfg, "DUEL: Client %s disconnected", c.id)
}

func (s *GameServer) handleMessage(c *Client, env Envelope) {
	switch env.Type {
	case msgStartMatchmaking:
		s.handleStartMatchmaking(c, env.Payload)
	case msgCancelMatchmaking:
		s.handleCancelMatchmaking(c, env.Payload)
	case msgGameAction:
		s.handleGameAction(c, env.Payload)
	case msgEndGame:
		s.handleEndGame(c, env.Payload)
	default:
		logf(s.cfg, "DUEL: Dropping message with unknown type %q from %s", env.Type, c.id)
	}
}

func (s *GameServer) handleStartMatchmaking(c *Client, raw json.RawMessage) {
	var p StartMatchmakingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		logf(s.cfg, "DUEL: Dropping malformed START_MATCHMAKING from %s: %v", c.id, err)
		return
	}
	if p.UserID == "" || p.CourseID == "" || len(p.UnitIDs) == 0 {
		c.trySend(matchmakingErrorMessage("userId, courseId and unitIds are required"))
		return
	}

	c.userID = p.UserID

	if _, ok := s.rooms.roomFor(p.UserID); ok {
		c.trySend(matchmakingErrorMessage("you are already in a game"))
		return
	}

	player := &queuedPlayer{
		userID:   p.UserID,
		courseID: p.CourseID,
		unitIDs:  p.UnitIDs,
		client:   c,
		queuedAt: time.Now(),
	}

	peer, err := s.queue.enqueue(player)
	switch err {
	case nil:
	case errAlreadyQueued:
		c.trySend(matchmakingErrorMessage("you are already searching for a match"))
		return
	case errQueueFull:
		c.trySend(matchmakingErrorMessage("matchmaking is busy right now, please try again shortly"))
		return
	default:
		c.trySend(matchmakingErrorMessage(err.Error()))
		return
	}

	if peer != nil {
		s.rooms.create(peer, player)
		return
	}

	s.reg.setRole(s.cfg, c.id, roleQueued)
	logf(s.cfg, "DUEL: Player %q queued for course %s (%d units), %d waiting",
		p.UserID, p.CourseID, len(p.UnitIDs), s.queue.size())
}

func (s *GameServer) handleCancelMatchmaking(c *Client, raw json.RawMessage) {
	var p CancelMatchmakingPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.UserID == "" {
		logf(s.cfg, "DUEL: Dropping malformed CANCEL_MATCHMAKING from %s", c.id)
		return
	}

	cancelled := s.queue.cancel(p.UserID)
	if cancelled == nil {
		return
	}

	s.reg.setRole(s.cfg, cancelled.client.id, roleIdle)
	logf(s.cfg, "DUEL: Player %q cancelled matchmaking", p.UserID)
}

func (s *GameServer) handleGameAction(c *Client, raw json.RawMessage) {
	var p GameActionPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" || p.Action == "" {
		logf(s.cfg, "DUEL: Dropping malformed GAME_ACTION from %s", c.id)
		return
	}

	switch err := s.rooms.relay(p.RoomID, c.userID, p.Action, p.Payload); err {
	case nil:
	case errRoomNotFound:
		c.trySend(matchmakingErrorMessage("room not found"))
	case errSenderNotMember:
		c.trySend(matchmakingErrorMessage("you are not a member of this room"))
	default:
		c.trySend(matchmakingErrorMessage(err.Error()))
	}
}

func (s *GameServer) handleEndGame(c *Client, raw json.RawMessage) {
	var p EndGamePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		logf(s.cfg, "DUEL: Dropping malformed END_GAME from %s", c.id)
		return
	}

	room := s.rooms.get(p.RoomID)
	if room == nil {
		c.trySend(matchmakingErrorMessage("room not found"))
		return
	}
	if !room.has(c.userID) {
		c.trySend(matchmakingErrorMessage("you are not a member of this room"))
		return
	}

	s.rooms.close(p.RoomID, reasonGameEnded)
}

// Stats reads a snapshot through the event loop, so it is always consistent
// with respect to in-flight events.
func (s *GameServer) Stats() DuelStats {
	req := statsRequest{reply: make(chan DuelStats, 1)}
	select {
	case s.events <- req:
	case <-s.done:
		return DuelStats{}
	}
	select {
	case stats := <-req.reply:
		return stats
	case <-s.done:
		return DuelStats{}
	}
}

// closeAll disconnects every client on shutdown.
func (s *GameServer) closeAll() {
	for _, c := range s.reg.conns {
		delete(s.reg.conns, c.id)
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}
