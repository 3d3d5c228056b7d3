package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/slopewatch/slope-monitor/internal/domain"
)

const (
	wsWriteWait = 5 * time.Second
	wsReadLimit = 512
)

// Keepalive window: the server pings inside every pong window so observers
// that never send application frames are not dropped while healthy. Vars so
// tests can shrink the window.
var (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// Origin checks are handled by the CORS layer; the websocket accepts any.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsClient adapts a websocket connection to the hub's Observer interface.
// The mutex serializes state sends (from the hub) against keepalive pings
// (from the handler's ping loop); gorilla connections allow one writer at a
// time.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) Send(state domain.SensorState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(state)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// handleWS upgrades the connection, registers it as an observer with the
// current snapshot, then drains inbound frames until the peer goes away.
// Inbound payloads are read and discarded; the feed is one-way.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &wsClient{conn: conn}
	if err := s.hub.Register(client, s.coordinator.Snapshot()); err != nil {
		s.logger.Warn("websocket initial snapshot failed", "error", err, "remote", r.RemoteAddr)
		conn.Close()
		return
	}
	s.logger.Info("websocket observer connected", "remote", r.RemoteAddr)

	stopPings := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-stopPings:
				return
			case <-ticker.C:
				if err := client.ping(); err != nil {
					return
				}
			}
		}
	}()

	defer func() {
		close(stopPings)
		s.hub.Unregister(client)
		conn.Close()
		s.logger.Info("websocket observer disconnected", "remote", r.RemoteAddr)
	}()

	conn.SetReadLimit(wsReadLimit)
	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		// Inbound frames also count as liveness.
		if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
			return
		}
	}
}
