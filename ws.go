package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const sendBufferSize = 16

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.frontendOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == cfg.frontendOrigin
		},
	}
}

// serveDuelWS upgrades the connection and hands it to the game server.
func serveDuelWS(cfg *Config, gs *GameServer) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response; the connection is
			// treated as never registered.
			logf(cfg, "ERROR: Websocket upgrade from %s failed: %v", realIP(r), err)
			return
		}

		client := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, sendBufferSize),
		}

		logf(cfg, "DUEL: Websocket connection from %s as %s", realIP(r), client.id)

		gs.post(connectEvent{client: client})

		go client.writePump()
		client.readPump(cfg, gs)
	}
}

// readPump decodes envelopes off the socket and feeds them to the event
// loop. Malformed JSON is dropped with a warning and the connection stays
// open; transport errors end the connection and trigger disconnect cleanup.
func (c *Client) readPump(cfg *Config, gs *GameServer) {
	defer func() {
		gs.post(disconnectEvent{client: c})
		_ = c.conn.Close()
	}()

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				logf(cfg, "DUEL: Dropping malformed message from %s: %v", c.id, err)
				continue
			}
			return
		}

		if env.Type == "" {
			logf(cfg, "DUEL: Dropping message without a type from %s", c.id)
			continue
		}

		gs.post(clientMessageEvent{client: c, env: env})
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
