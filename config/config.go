// Package config holds the tunable parameters of a node, with defaults
// matching spec and an env-var override layer for deployment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configurable parameters for an anoncoin node.
type Config struct {
	// Consensus / emission constants.
	Difficulty        int
	DefaultReward     float64
	MaxSupply         float64
	HalvingInterval   uint64
	AnonBlockInterval uint64
	BonusReward       float64
	RingSize          int

	// Storage.
	DataDir string

	// P2P.
	ListenAddr     string
	BootstrapPeers []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
}

// Default returns a Config populated with the constants from spec §4.6.3.
func Default() Config {
	return Config{
		Difficulty:        3,
		DefaultReward:     50,
		MaxSupply:         33_000_000,
		HalvingInterval:   5_000,
		AnonBlockInterval: 333,
		BonusReward:       5,
		RingSize:          5,

		DataDir: "./data",

		ListenAddr:     ":9000",
		BootstrapPeers: nil,
		ReconnectDelay: 5 * time.Second,
		PingInterval:   20 * time.Second,
		PongWait:       20 * time.Second,
	}
}

// FromEnv returns a Config populated from environment variables, falling
// back to Default() for anything unset or unparsable.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("ANONCOIN_DIFFICULTY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Difficulty = n
		}
	}
	if v := os.Getenv("ANONCOIN_DEFAULT_REWARD"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DefaultReward = n
		}
	}
	if v := os.Getenv("ANONCOIN_HALVING_INTERVAL"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.HalvingInterval = n
		}
	}
	if v := os.Getenv("ANONCOIN_ANON_BLOCK_INTERVAL"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.AnonBlockInterval = n
		}
	}
	if v := os.Getenv("ANONCOIN_BONUS_REWARD"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BonusReward = n
		}
	}
	if v := os.Getenv("ANONCOIN_RING_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RingSize = n
		}
	}
	if v := os.Getenv("ANONCOIN_DATADIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ANONCOIN_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ANONCOIN_RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReconnectDelay = d
		}
	}
	if v := os.Getenv("ANONCOIN_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PingInterval = d
		}
	}
	if v := os.Getenv("ANONCOIN_PONG_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PongWait = d
		}
	}

	return cfg
}
