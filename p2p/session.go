package p2p

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Session wraps one peer's WebSocket connection: a single reader goroutine
// dispatching into Server.handle, a write mutex since gorilla/websocket
// connections are not safe for concurrent writers, and a ping ticker
// implementing the 20s/20s keep-alive from spec §5.
type Session struct {
	conn   *websocket.Conn
	server *Server
	log    *zap.Logger

	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

func newSession(conn *websocket.Conn, server *Server, log *zap.Logger) *Session {
	return &Session{
		conn:   conn,
		server: server,
		log:    log,
		closed: make(chan struct{}),
	}
}

// run blocks reading messages and pinging until the connection closes.
func (s *Session) run() {
	go s.pingLoop()

	pongWait := s.server.cfg.PongWait
	if pongWait <= 0 {
		pongWait = 20 * time.Second
	}
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := s.server.handle(s, msg); err != nil && s.log != nil {
			s.log.Debug("peer protocol error", zap.Error(err))
		}
	}
}

func (s *Session) pingLoop() {
	interval := s.server.cfg.PingInterval
	if interval <= 0 {
		interval = 20 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Session) send(msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}
