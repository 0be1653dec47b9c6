// Package registry exposes the two query-facing components built on top
// of the store: LedgerRegistry, which tracks which ledgers are configured
// and which one is currently active, and PackageRegistry, a read/write
// facade scoped to whichever ledger is active (spec §4.6, §4.7).
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tos-network/bpmcore/ledger"
	"github.com/tos-network/bpmcore/log"
	"github.com/tos-network/bpmcore/store"
)

// State is LedgerRegistry's lifecycle stage (spec §4.7).
type State int

const (
	// StateInit is the registry's state before any ledger has been configured.
	StateInit State = iota
	// StateConfigured means at least one ledger is known but none is selected active.
	StateConfigured
	// StateActive means an active ledger has been selected and is ready for use.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateConfigured:
		return "Configured"
	case StateActive:
		return "Active"
	default:
		return "Unknown"
	}
}

// ErrNoActiveLedger is returned by any operation that requires an active
// ledger when none has been selected (spec §4.7 - fail fast, never panic).
var ErrNoActiveLedger = errors.New("registry: no active ledger selected")

// ErrUnknownLedger is returned when SetActive names a label that was
// never configured.
var ErrUnknownLedger = errors.New("registry: unknown ledger label")

var log15 = log.New("pkg", "registry")

// LedgerRegistry tracks configured LedgerClients and which one, if any,
// is currently active.
type LedgerRegistry struct {
	store *store.Store

	mu      sync.RWMutex
	state   State
	clients map[string]*ledger.Client
	active  string
}

// NewLedgerRegistry returns an empty registry in StateInit, backed by s
// for watermark persistence.
func NewLedgerRegistry(s *store.Store) *LedgerRegistry {
	return &LedgerRegistry{store: s, clients: make(map[string]*ledger.Client)}
}

// Configure registers client, creating (or loading) its watermark record
// and advancing the registry out of StateInit. Configure is idempotent:
// re-configuring an already-known label replaces its client without
// resetting its watermark (grounded on init_blockchains' exists-check).
func (r *LedgerRegistry) Configure(client *ledger.Client) error {
	if _, err := r.store.Ledgers.EnsureConfigured(client.Label()); err != nil {
		return fmt.Errorf("registry: configuring %s: %w", client.Label(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.Label()] = client
	if r.state == StateInit {
		r.state = StateConfigured
	}
	log15.Debug("ledger configured", "label", client.Label())
	return nil
}

// SetActive selects label as the active ledger. label must already have
// been configured.
func (r *LedgerRegistry) SetActive(label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[label]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLedger, label)
	}
	r.active = label
	r.state = StateActive
	log15.Info("active ledger selected", "label", label)
	return nil
}

// Active returns the currently active client, or ErrNoActiveLedger if
// none has been selected.
func (r *LedgerRegistry) Active() (*ledger.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != StateActive {
		return nil, ErrNoActiveLedger
	}
	return r.clients[r.active], nil
}

// State reports the registry's current lifecycle stage.
func (r *LedgerRegistry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Labels returns every configured ledger label.
func (r *LedgerRegistry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.clients))
	for label := range r.clients {
		out = append(out, label)
	}
	return out
}
