package main

import (
	"context"

	"github.com/tos-network/bpmcore/ledger"
	"github.com/tos-network/bpmcore/registry"
	"github.com/tos-network/bpmcore/store"
)

// noopIO is handed to commands (like `list`) that only ever read the
// local mirror: LedgerRegistry still requires a configured client to
// select a ledger active (spec §4.7), but these commands never
// subscribe or publish through it.
type noopIO struct{}

func (noopIO) Read(ctx context.Context, ch chan<- []byte, sinceWatermark int64) error {
	<-ctx.Done()
	return ctx.Err()
}

func (noopIO) Write(ctx context.Context, message []byte) error { return nil }

// activateLedger configures a single client under its own LedgerRegistry
// and selects it active, the way any real caller must before touching
// SyncEngine or PackageRegistry (spec §4.7 - select() MUST precede those
// operations or they fail fast with NoActiveLedger).
func activateLedger(s *store.Store, label string, io ledger.IO, opts ...ledger.Option) (*registry.LedgerRegistry, error) {
	client, err := ledger.New(label, io, s.Ledgers, opts...)
	if err != nil {
		return nil, err
	}

	ledgers := registry.NewLedgerRegistry(s)
	if err := ledgers.Configure(client); err != nil {
		return nil, err
	}
	if err := ledgers.SetActive(label); err != nil {
		return nil, err
	}
	return ledgers, nil
}
