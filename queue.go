package main

import (
	"errors"
	"time"
)

var (
	errAlreadyQueued = errors.New("player is already in the matchmaking queue")
	errQueueFull     = errors.New("the matchmaking queue is full")
)

// queuedPlayer is one player waiting for an opponent.
type queuedPlayer struct {
	userID   string
	courseID string
	unitIDs  []string
	client   *Client
	queuedAt time.Time
}

// compatible reports whether two waiting players can be paired: same course,
// at least one shared unit, and never the same player.
func compatible(a, b *queuedPlayer) bool {
	if a.userID == b.userID {
		return false
	}
	if a.courseID != b.courseID {
		return false
	}
	for _, unit := range a.unitIDs {
		for _, other := range b.unitIDs {
			if unit == other {
				return true
			}
		}
	}
	return false
}

// matchQueue holds players waiting for a match, in arrival order.
//
// Not safe for concurrent use; owned by the GameServer event loop. Each
// enqueue runs its compatibility scan and pair removal as one step, so a
// player can never be matched twice.
type matchQueue struct {
	waiting []*queuedPlayer
	limit   int // 0 = unbounded
}

func newMatchQueue(limit int) *matchQueue {
	return &matchQueue{
		limit: limit,
	}
}

// enqueue scans the queue in arrival order for the earliest compatible
// player. On a hit that player is removed and returned; on a miss p becomes
// the last entry and nil is returned.
func (q *matchQueue) enqueue(p *queuedPlayer) (*queuedPlayer, error) {
	if q.contains(p.userID) {
		return nil, errAlreadyQueued
	}

	for i, candidate := range q.waiting {
		if compatible(candidate, p) {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return candidate, nil
		}
	}

	if q.limit > 0 && len(q.waiting) >= q.limit {
		return nil, errQueueFull
	}

	q.waiting = append(q.waiting, p)
	return nil, nil
}

// cancel removes the player's entry if present and returns it. Safe to call
// for players that were never queued or were already matched.
func (q *matchQueue) cancel(userID string) *queuedPlayer {
	for i, p := range q.waiting {
		if p.userID == userID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return p
		}
	}
	return nil
}

// cancelClient removes the entry belonging to this connection, if any.
// Disconnect cleanup is keyed by connection rather than player ID so that a
// player re-queued from a fresh tab is not purged when a stale tab closes.
func (q *matchQueue) cancelClient(c *Client) *queuedPlayer {
	for i, p := range q.waiting {
		if p.client == c {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return p
		}
	}
	return nil
}

func (q *matchQueue) contains(userID string) bool {
	for _, p := range q.waiting {
		if p.userID == userID {
			return true
		}
	}
	return false
}

func (q *matchQueue) size() int {
	return len(q.waiting)
}

// peek returns the earliest-waiting player without removing it.
func (q *matchQueue) peek() *queuedPlayer {
	if len(q.waiting) == 0 {
		return nil
	}
	return q.waiting[0]
}
