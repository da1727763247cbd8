// Package p2p implements the peer synchronization protocol from spec
// §4.7: a single long-lived bidirectional WebSocket session per peer,
// JSON messages discriminated by a "type" field, and longest-valid-chain
// replacement.
package p2p

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anoncoinproject/anoncoin/config"
	"github.com/anoncoinproject/anoncoin/engine"
	"github.com/anoncoinproject/anoncoin/nodeerrors"
	"github.com/anoncoinproject/anoncoin/types"
)

// Message is the wire envelope for every peer exchange (spec §4.7). Only
// the field matching Type is populated.
type Message struct {
	Type        string             `json:"type"`
	Chain       types.Chain        `json:"chain,omitempty"`
	Block       *types.Block       `json:"block,omitempty"`
	Transaction *types.Transaction `json:"transaction,omitempty"`
}

const (
	msgBlockchain        = "blockchain"
	msgRequestBlockchain = "request_blockchain"
	msgNewBlock          = "new_block"
	msgNewTransaction    = "new_transaction"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server hosts the "/ws" endpoint, maintains one Session per connected
// peer (inbound or outbound), and serializes engine mutation from gossip
// through engine.Engine's own locking.
type Server struct {
	cfg config.Config
	eng *engine.Engine
	log *zap.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewServer wires a Server to the node's engine.
func NewServer(cfg config.Config, eng *engine.Engine, log *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		eng:      eng,
		log:      log,
		sessions: make(map[*Session]struct{}),
	}
}

// Handler returns the http.Handler to mount at "/ws".
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			if s.log != nil {
				s.log.Warn("websocket upgrade failed", zap.Error(err))
			}
			return
		}
		sess := newSession(conn, s, s.log)
		s.addSession(sess)
		defer s.removeSession(sess)

		hello := Message{Type: msgBlockchain, Chain: s.eng.Chain()}
		if err := sess.send(hello); err != nil {
			return
		}
		sess.run()
	}
}

// Dial opens an outbound session to addr and keeps it alive, reconnecting
// with the configured back-off on failure, until stop is closed (spec
// §4.7's bootstrap behavior).
func (s *Server) Dial(addr string, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
		if err != nil {
			if s.log != nil {
				s.log.Warn("peer dial failed, retrying", zap.String("addr", addr), zap.Error(err), zap.Duration("backoff", s.cfg.ReconnectDelay))
			}
			select {
			case <-time.After(s.cfg.ReconnectDelay):
				continue
			case <-stop:
				return
			}
		}

		sess := newSession(conn, s, s.log)
		s.addSession(sess)
		if err := sess.send(Message{Type: msgRequestBlockchain}); err != nil {
			s.removeSession(sess)
			continue
		}
		sess.run()
		s.removeSession(sess)

		select {
		case <-time.After(s.cfg.ReconnectDelay):
		case <-stop:
			return
		}
	}
}

// Broadcast sends msg to every connected peer except exclude.
func (s *Server) Broadcast(msg Message, exclude *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		if sess == exclude {
			continue
		}
		if err := sess.send(msg); err != nil && s.log != nil {
			s.log.Debug("broadcast to peer failed", zap.Error(err))
		}
	}
}

// BroadcastBlock gossips a newly mined or applied block to all peers.
func (s *Server) BroadcastBlock(block types.Block) {
	s.Broadcast(Message{Type: msgNewBlock, Block: &block}, nil)
}

// BroadcastTransaction gossips a newly admitted transaction to all peers.
func (s *Server) BroadcastTransaction(tx types.Transaction) {
	s.Broadcast(Message{Type: msgNewTransaction, Transaction: &tx}, nil)
}

func (s *Server) addSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess] = struct{}{}
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
	sess.close()
}

// handle dispatches one inbound message per spec §4.7's handler rules.
func (s *Server) handle(sess *Session, msg Message) error {
	switch msg.Type {
	case msgNewBlock:
		if msg.Block == nil {
			return fmt.Errorf("new_block with no block: %w", nodeerrors.ErrPeerProtocol)
		}
		if err := s.eng.ApplyBlock(*msg.Block); err != nil {
			if s.log != nil {
				s.log.Debug("dropped invalid gossiped block", zap.Error(err))
			}
			return nil
		}
		s.Broadcast(msg, sess)

	case msgNewTransaction:
		if msg.Transaction == nil {
			return fmt.Errorf("new_transaction with no transaction: %w", nodeerrors.ErrPeerProtocol)
		}
		if err := s.eng.AddTransaction(*msg.Transaction); err != nil {
			if s.log != nil {
				s.log.Debug("dropped invalid gossiped transaction", zap.Error(err))
			}
			return nil
		}
		s.Broadcast(msg, sess)

	case msgBlockchain:
		if len(msg.Chain) == 0 {
			return fmt.Errorf("blockchain message with empty chain: %w", nodeerrors.ErrPeerProtocol)
		}
		if err := s.eng.ReplaceChain(msg.Chain); err != nil {
			if s.log != nil {
				s.log.Debug("did not adopt peer chain", zap.Error(err))
			}
		}

	case msgRequestBlockchain:
		return sess.send(Message{Type: msgBlockchain, Chain: s.eng.Chain()})

	default:
		return fmt.Errorf("unknown message type %q: %w", msg.Type, nodeerrors.ErrPeerProtocol)
	}
	return nil
}
