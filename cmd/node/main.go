package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/anoncoinproject/anoncoin/config"
	"github.com/anoncoinproject/anoncoin/directory"
	"github.com/anoncoinproject/anoncoin/engine"
	"github.com/anoncoinproject/anoncoin/p2p"
	"github.com/anoncoinproject/anoncoin/storage"
)

func main() {
	cfg := parseFlags()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	node, err := NewNode(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create node", zap.Error(err))
	}

	if err := node.Start(); err != nil {
		logger.Fatal("failed to start node", zap.Error(err))
	}
	logger.Info("node started", zap.String("listen_addr", cfg.ListenAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	node.Stop()
}

// Node wires together the engine, the p2p server, and persistence.
type Node struct {
	cfg   config.Config
	log   *zap.Logger
	dir   *directory.Directory
	store *storage.Store
	index *storage.Index
	eng   *engine.Engine
	srv   *p2p.Server

	httpSrv *http.Server
	stopCh  chan struct{}
}

// NewNode loads persisted state if present, otherwise constructs a fresh
// genesis engine, and wires the p2p server around it.
func NewNode(cfg config.Config, logger *zap.Logger) (*Node, error) {
	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	index, err := storage.OpenIndex(cfg.DataDir + "/index")
	if err != nil {
		return nil, err
	}

	dir := directory.New()
	eng, err := engine.New(cfg, logger, dir)
	if err != nil {
		index.Close()
		return nil, err
	}

	chain, pending, err := store.LoadChain()
	if err != nil {
		index.Close()
		return nil, err
	}
	if len(chain) > 0 {
		if err := eng.LoadChain(chain); err != nil {
			index.Close()
			return nil, err
		}
		for _, tx := range pending {
			_ = eng.AddTransaction(tx)
		}
	}
	if err := index.Rebuild(eng.Chain()); err != nil {
		index.Close()
		return nil, err
	}

	wallets, err := store.LoadWallets()
	if err != nil {
		index.Close()
		return nil, err
	}
	for _, w := range wallets {
		if w.PublicKeyHex != "" {
			dir.Register(w.Address, w.PublicKeyHex)
		}
	}

	srv := p2p.NewServer(cfg, eng, logger)

	return &Node{
		cfg:     cfg,
		log:     logger,
		dir:     dir,
		store:   store,
		index:   index,
		eng:     eng,
		srv:     srv,
		httpSrv: &http.Server{Addr: cfg.ListenAddr, Handler: mux(srv)},
		stopCh:  make(chan struct{}),
	}, nil
}

func mux(srv *p2p.Server) http.Handler {
	m := http.NewServeMux()
	m.HandleFunc("/ws", srv.Handler())
	return m
}

// Start launches the WebSocket listener and one reconnect-loop goroutine
// per configured bootstrap peer.
func (n *Node) Start() error {
	go func() {
		if err := n.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			n.log.Error("http server stopped", zap.Error(err))
		}
	}()

	for _, peer := range n.cfg.BootstrapPeers {
		peer := strings.TrimSpace(peer)
		if peer == "" {
			continue
		}
		go n.srv.Dial(peer, n.stopCh)
	}

	go n.persistLoop()
	return nil
}

// persistLoop whole-file-replaces the JSON store periodically; mirrors
// spec §5's "writes are whole-file replacements" without persisting on
// every single mutation.
func (n *Node) persistLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.persist()
		case <-n.stopCh:
			return
		}
	}
}

func (n *Node) persist() {
	chain := n.eng.Chain()
	if err := n.store.SaveChain(chain, n.eng.Mempool(), n.cfg.Difficulty, n.eng.TotalSupply()); err != nil {
		n.log.Error("failed to persist chain", zap.Error(err))
	}
	if err := n.index.Rebuild(chain); err != nil {
		n.log.Error("failed to rebuild index", zap.Error(err))
	}
}

// Stop flushes persisted state and shuts down the listener.
func (n *Node) Stop() {
	close(n.stopCh)
	n.persist()
	n.httpSrv.Close()
	n.index.Close()
}

func parseFlags() config.Config {
	cfg := config.FromEnv()

	dataDir := flag.String("datadir", cfg.DataDir, "data directory")
	listenAddr := flag.String("listen", cfg.ListenAddr, "P2P listen address")
	bootstrap := flag.String("bootstrap", "", "comma-separated bootstrap peer ws:// addresses")
	difficulty := flag.Int("difficulty", cfg.Difficulty, "proof-of-work difficulty")
	flag.Parse()

	cfg.DataDir = *dataDir
	cfg.ListenAddr = *listenAddr
	cfg.Difficulty = *difficulty
	if *bootstrap != "" {
		cfg.BootstrapPeers = strings.Split(*bootstrap, ",")
	}
	return cfg
}
