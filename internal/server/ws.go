package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MelonMars/ABMMarket/internal/engine"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The dashboard binds locally; cross-origin pages may drive it too.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// wsRequest is what the page sends: step to advance, reset to rebuild.
type wsRequest struct {
	Type string `json:"type"`
}

// wsEnvelope is what the server sends back.
type wsEnvelope struct {
	Type  string        `json:"type"`
	State *engine.State `json:"state,omitempty"`
	Error string        `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// enqueue offers a payload without blocking; a dead or saturated
// client just misses the frame.
func (c *client) enqueue(payload []byte) {
	select {
	case <-c.done:
	case c.send <- payload:
	default:
	}
}

// handleWS upgrades the connection, pushes the current frame, and then
// serves step/reset requests until the peer goes away. Every connected
// client sees every new frame, whichever client asked for it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(conn)
	s.register(c)
	s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("dashboard client connected")

	c.enqueue(marshalEnvelope(wsEnvelope{Type: "state", State: statePtr(s.current().State())}))

	go c.writePump()
	s.readPump(c)
}

func (s *Server) register(c *client) {
	s.clientMu.Lock()
	s.clients[c] = struct{}{}
	s.clientMu.Unlock()
}

func (s *Server) unregister(c *client) {
	s.clientMu.Lock()
	delete(s.clients, c)
	s.clientMu.Unlock()
	c.close()
}

// broadcastState fans a frame out to every client. A client whose
// buffer is full is dropped rather than allowed to stall the step loop.
func (s *Server) broadcastState(state engine.State) {
	payload := marshalEnvelope(wsEnvelope{Type: "state", State: &state})

	s.clientMu.Lock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			delete(s.clients, c)
			c.close()
			s.log.Warn().Msg("dropped slow dashboard client")
		}
	}
	s.clientMu.Unlock()
}

func (s *Server) readPump(c *client) {
	defer s.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("dashboard client read failed")
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.enqueue(marshalEnvelope(wsEnvelope{Type: "error", Error: "bad message"}))
			continue
		}

		switch req.Type {
		case "step":
			s.broadcastState(s.current().Step())
		case "reset":
			if _, err := s.reset(); err != nil {
				c.enqueue(marshalEnvelope(wsEnvelope{Type: "error", Error: err.Error()}))
			}
		default:
			c.enqueue(marshalEnvelope(wsEnvelope{Type: "error", Error: "unknown message type " + req.Type}))
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func marshalEnvelope(env wsEnvelope) []byte {
	payload, err := json.Marshal(env)
	if err != nil {
		return []byte(`{"type":"error","error":"encode state"}`)
	}
	return payload
}

func statePtr(state engine.State) *engine.State { return &state }
