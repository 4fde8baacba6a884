// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
	"github.com/ttbt-io/lineupkeeper/backend/roster"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// Message types for WebSocket communication
const (
	MsgTypeBest           = "BEST"
	MsgTypeEvaluate       = "EVALUATE"
	MsgTypePing           = "PING"
	MsgTypePong           = "PONG"
	MsgTypeResult         = "RESULT"
	MsgTypeSelection      = "SELECTION"
	MsgTypeRosterReloaded = "ROSTER_RELOADED"
	MsgTypeError          = "ERROR"
)

// Message represents a WebSocket message
type Message struct {
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"`
	Player  string   `json:"player,omitempty"`
	Players []string `json:"players,omitempty"`
	K       int      `json:"k,omitempty"`

	Best   *BestResult    `json:"best,omitempty"`
	Lineup *lineup.Lineup `json:"lineup,omitempty"`
	Roster *RosterSummary `json:"roster,omitempty"`

	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

// RosterSummary identifies a roster snapshot without its players.
type RosterSummary struct {
	Source  string    `json:"source"`
	Digest  string    `json:"digest"`
	Players int       `json:"players"`
	Loaded  time.Time `json:"loadedAt"`
}

func summarize(r *roster.Roster) *RosterSummary {
	return &RosterSummary{Source: r.Source, Digest: r.Digest, Players: r.Len(), Loaded: r.LoadedAt}
}

func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range allowed {
				if a == "*" || a == origin {
					return true
				}
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return u.Host == r.Host
		},
	}
}

// Hub maintains the set of active clients and broadcasts roster changes.
type Hub struct {
	// Registered clients.
	clients map[*wsClient]bool

	// Outbound messages for every client.
	broadcastCh chan Message

	// Register requests from the clients.
	register chan *wsClient

	// Unregister requests from clients.
	unregister chan *wsClient

	done    chan struct{}
	engine  *Engine
	metrics *Metrics
}

// NewHub creates a Hub. Call Run to start it.
func NewHub(engine *Engine, metrics *Metrics) *Hub {
	return &Hub{
		clients:     make(map[*wsClient]bool),
		broadcastCh: make(chan Message, 16),
		register:    make(chan *wsClient),
		unregister:  make(chan *wsClient),
		done:        make(chan struct{}),
		engine:      engine,
		metrics:     metrics,
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.metrics.activeWS.Set(float64(len(h.clients)))
		case client := <-h.unregister:
			delete(h.clients, client)
			h.metrics.activeWS.Set(float64(len(h.clients)))
		case msg := <-h.broadcastCh:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Too slow to keep up; drop it.
					client.cancel()
					delete(h.clients, client)
				}
			}
			h.metrics.activeWS.Set(float64(len(h.clients)))
		case <-h.done:
			for client := range h.clients {
				client.cancel()
				delete(h.clients, client)
			}
			h.metrics.activeWS.Set(0)
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Broadcast queues msg for every connected client.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcastCh <- msg:
	case <-h.done:
	}
}

type wsClient struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan Message

	ctx    context.Context
	cancel context.CancelFunc
	debugf func(string, ...any)
}

// readPump pumps requests from the websocket connection and answers them.
func (c *wsClient) readPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}
		c.debugf("WS request %s id=%s", msg.Type, msg.ID)

		switch msg.Type {
		case MsgTypeBest:
			c.sendJSON(c.handleBest(msg))
		case MsgTypeEvaluate:
			c.sendJSON(c.handleEvaluate(msg))
		case MsgTypePing:
			c.sendJSON(Message{Type: MsgTypePong, ID: msg.ID})
		default:
			log.Printf("Unknown message type: %s", msg.Type)
			c.sendJSON(Message{Type: MsgTypeError, ID: msg.ID, Error: "Unknown message type"})
		}
	}
}

func (c *wsClient) handleBest(msg Message) Message {
	if err := validatePlayerName(msg.Player); err != nil {
		return Message{Type: MsgTypeError, ID: msg.ID, Error: err.Error()}
	}
	if msg.K < 0 || msg.K > maxTopK {
		return Message{Type: MsgTypeError, ID: msg.ID, Error: "k out of range"}
	}
	res, err := c.hub.engine.Best(c.ctx, msg.Player, msg.K)
	if err != nil {
		return Message{Type: MsgTypeError, ID: msg.ID, Kind: errorKind(err), Error: err.Error()}
	}
	return Message{Type: MsgTypeResult, ID: msg.ID, Best: res}
}

func (c *wsClient) handleEvaluate(msg Message) Message {
	if err := validateSelection(msg.Players); err != nil {
		return Message{Type: MsgTypeError, ID: msg.ID, Error: err.Error()}
	}
	l, err := c.hub.engine.Evaluate(msg.Players)
	if err != nil {
		var se *lineup.SelectionError
		if errors.As(err, &se) {
			return Message{Type: MsgTypeSelection, ID: msg.ID, Kind: string(se.Kind), Error: se.Error()}
		}
		return Message{Type: MsgTypeError, ID: msg.ID, Kind: errorKind(err), Error: err.Error()}
	}
	return Message{Type: MsgTypeResult, ID: msg.ID, Lineup: &l}
}

// errorKind is a stable machine-readable tag for lineup errors.
func errorKind(err error) string {
	switch {
	case errors.Is(err, lineup.ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, lineup.ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal"
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-c.ctx.Done():
			// Disconnected by the hub or by readPump.
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) sendJSON(msg Message) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	}
}

// ServeWS upgrades the request and attaches the client to the hub.
func ServeWS(h *Hub, upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, debugf func(string, ...any)) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &wsClient{hub: h, conn: conn, send: make(chan Message, 256), ctx: ctx, cancel: cancel, debugf: debugf}
	select {
	case h.register <- client:
	case <-h.done:
		cancel()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
