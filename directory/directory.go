// Package directory provides the wallet address→public-key registry
// consulted when assembling and verifying ring signatures.
//
// spec §9 calls out that the original design used a process-wide global
// for this; here it is an explicit collaborator constructed once and
// passed to whatever needs it (the engine, which the p2p server goes
// through, and wallet.CreateAnonymousTransaction), never reached for as
// ambient state.
package directory

import "sync"

// Directory is a concurrency-safe address→public-key registry.
type Directory struct {
	mu     sync.RWMutex
	byAddr map[string]string // address -> hex public key
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{byAddr: make(map[string]string)}
}

// Register records a wallet's address and public key. Safe to call
// multiple times for the same address (last write wins).
func (d *Directory) Register(address, pubKeyHex string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byAddr[address] = pubKeyHex
}

// Lookup returns the public key registered for address, if any.
func (d *Directory) Lookup(address string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pub, ok := d.byAddr[address]
	return pub, ok
}

// PublicKeys returns every registered public key, in unspecified order.
// Used to assemble ring-signature membership.
func (d *Directory) PublicKeys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.byAddr))
	for _, pub := range d.byAddr {
		out = append(out, pub)
	}
	return out
}

// Contains reports whether pubKeyHex is registered against any address.
// Used during ring-signature verification to confirm at least one ring
// member is a known wallet rather than an entirely fabricated ring.
func (d *Directory) Contains(pubKeyHex string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, pub := range d.byAddr {
		if pub == pubKeyHex {
			return true
		}
	}
	return false
}

// Len reports the number of registered wallets.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byAddr)
}
