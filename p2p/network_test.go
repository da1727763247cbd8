package p2p

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anoncoinproject/anoncoin/config"
	"github.com/anoncoinproject/anoncoin/directory"
	"github.com/anoncoinproject/anoncoin/engine"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Difficulty = 1
	cfg.PingInterval = time.Hour
	cfg.PongWait = time.Hour
	return cfg
}

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	cfg := testConfig()
	eng, err := engine.New(cfg, nil, directory.New())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return NewServer(cfg, eng, nil), eng
}

func dialServer(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServer_SendsChainOnConnect(t *testing.T) {
	srv, eng := newTestServer(t)
	conn := dialServer(t, srv)

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if msg.Type != msgBlockchain {
		t.Errorf("first message type = %q, want %q", msg.Type, msgBlockchain)
	}
	if len(msg.Chain) != len(eng.Chain()) {
		t.Errorf("hello chain length = %d, want %d", len(msg.Chain), len(eng.Chain()))
	}
}

func TestServer_RequestBlockchain_RepliesWithChain(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialServer(t, srv)

	var hello Message
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}

	if err := conn.WriteJSON(Message{Type: msgRequestBlockchain}); err != nil {
		t.Fatalf("write request_blockchain: %v", err)
	}

	var reply Message
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != msgBlockchain || len(reply.Chain) == 0 {
		t.Errorf("reply = %+v, want a non-empty blockchain message", reply)
	}
}

func TestServer_NewBlock_AppliesAndGossipsToOtherPeers(t *testing.T) {
	srv, eng := newTestServer(t)

	// A second engine seeded from the same genesis mines the block that
	// will arrive over the wire, so it is a valid successor to eng's tip
	// without eng ever mining it itself.
	cfg := testConfig()
	peerEng, err := engine.New(cfg, nil, directory.New())
	if err != nil {
		t.Fatalf("new peer engine: %v", err)
	}
	if err := peerEng.LoadChain(eng.Chain()); err != nil {
		t.Fatalf("seed peer engine from shared genesis: %v", err)
	}
	next, err := peerEng.MinePending("peer-miner", "")
	if err != nil {
		t.Fatalf("mine next block: %v", err)
	}

	sender := dialServer(t, srv)
	var helloA Message
	if err := sender.ReadJSON(&helloA); err != nil {
		t.Fatalf("read hello on sender: %v", err)
	}

	listener := dialServer(t, srv)
	var helloB Message
	if err := listener.ReadJSON(&helloB); err != nil {
		t.Fatalf("read hello on listener: %v", err)
	}

	if err := sender.WriteJSON(Message{Type: msgNewBlock, Block: &next}); err != nil {
		t.Fatalf("write new_block: %v", err)
	}

	var relayed Message
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := listener.ReadJSON(&relayed); err != nil {
		t.Fatalf("listener did not receive gossiped block: %v", err)
	}
	if relayed.Type != msgNewBlock || relayed.Block == nil {
		t.Fatalf("relayed message = %+v, want a new_block", relayed)
	}
	if relayed.Block.Hash != next.Hash {
		t.Errorf("relayed block hash = %s, want %s", relayed.Block.Hash, next.Hash)
	}
	if eng.Tip().Hash != next.Hash {
		t.Errorf("server engine tip = %s, want it to have applied the gossiped block %s", eng.Tip().Hash, next.Hash)
	}
}

func TestServer_UnknownMessageType_DoesNotCrashSession(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialServer(t, srv)

	var hello Message
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}

	if err := conn.WriteJSON(Message{Type: "not_a_real_type"}); err != nil {
		t.Fatalf("write unknown message: %v", err)
	}

	// The session should stay open and keep answering well-formed requests
	// after an unrecognized message type.
	if err := conn.WriteJSON(Message{Type: msgRequestBlockchain}); err != nil {
		t.Fatalf("write request_blockchain: %v", err)
	}
	var reply Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("session did not survive an unknown message type: %v", err)
	}
	if reply.Type != msgBlockchain {
		t.Errorf("reply type = %q, want %q", reply.Type, msgBlockchain)
	}
}
