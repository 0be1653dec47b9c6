// Package sync runs one synchronization pass per call: subscribe to a
// ledger, decode and verify every package it offers, upsert the verified
// ones into the local store, and forward them to the caller (spec §4.5).
package sync

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tos-network/bpmcore/ledger"
	"github.com/tos-network/bpmcore/log"
	"github.com/tos-network/bpmcore/pkg"
	"github.com/tos-network/bpmcore/registry"
	"github.com/tos-network/bpmcore/signing"
)

var log15 = log.New("pkg", "sync")

// Engine drives synchronization passes for whichever ledger Ledgers
// currently reports active, writing through Packages (spec §4.6/§4.7 -
// select() must precede any SyncEngine operation).
type Engine struct {
	Ledgers  *registry.LedgerRegistry
	Packages *registry.PackageRegistry
}

// NewEngine constructs an Engine that reads the active client from
// ledgers and writes verified packages through packages.
func NewEngine(ledgers *registry.LedgerRegistry, packages *registry.PackageRegistry) *Engine {
	return &Engine{Ledgers: ledgers, Packages: packages}
}

// Stats summarizes one completed pass.
type Stats struct {
	Received   int
	Duplicates int // messages sharing a composite key already seen this pass
	Verified   int
	Rejected   int
	Upserted   int
	Watermark  int64
}

// Run executes a single synchronization pass against whichever ledger
// LedgerRegistry currently reports active: verify and upsert every
// package it offers, forward each verified package on out, and advance
// the ledger's watermark. Run returns registry.ErrNoActiveLedger
// immediately if no ledger has been selected (spec §4.7). It returns
// once the subscription's pass ends (idle timeout or stream close) or
// ctx is cancelled; no task started by Run outlives ctx or Run's own
// return (spec §5 - "no task may outlive its parent").
func (e *Engine) Run(ctx context.Context, out chan<- *pkg.Package) (Stats, error) {
	client, err := e.Ledgers.Active()
	if err != nil {
		return Stats{}, err
	}

	previousWatermark, err := client.GetWatermark()
	if err != nil {
		return Stats{}, err
	}

	passID := uuid.New().String()
	l := log15.New("ledger", client.Label(), "pass", passID)
	l.Debug("starting synchronization pass")

	group, gctx := errgroup.WithContext(ctx)
	messages := make(chan ledger.Message, 16)

	group.Go(func() error {
		defer close(messages)
		err := client.Subscribe(gctx, messages)
		if errors.Is(err, ledger.ErrNoPackagesData) {
			l.Debug("pass ended with no new packages")
			return nil
		}
		return err
	})

	var stats Stats
	seen := mapset.NewSet()

	group.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case msg, ok := <-messages:
				if !ok {
					return nil
				}
				stats.Received++

				p := msg.Package
				key := client.Label() + "/" + p.Name + "/" + p.Version + "/" + p.Maintainer.Hex()
				if seen.Contains(key) {
					stats.Duplicates++
				} else {
					seen.Add(key)
				}

				// Every message is verified, upserted, and forwarded
				// regardless of whether its key has been seen before in
				// this pass: a later message with the same composite key
				// but different content (status mutation, re-signed
				// metadata) is authoritative and must overwrite the
				// earlier one (spec I4, scenario S3). seen only feeds the
				// duplicate-key count above.
				if !signing.Verify(p) {
					stats.Rejected++
					l.Debug("rejecting package with invalid signature", "name", p.Name, "version", p.Version)
					continue
				}
				stats.Verified++

				if err := e.Packages.Add(p); err != nil {
					return fmt.Errorf("sync: upserting %s@%s: %w", p.Name, p.Version, err)
				}
				stats.Upserted++

				select {
				case out <- p:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	if err := group.Wait(); err != nil {
		l.Debug("synchronization pass ended with error", "err", err)
		return stats, err
	}

	// Subscribe already advanced the watermark to wall-clock-now on its
	// own clean ending (spec §4.4); this re-reads it back the way
	// SyncEngine.run's step 4 does ("ledgers.upsert({... client.get_watermark()})")
	// and clamps it forward as a last-resort defense against clock skew,
	// preserving monotonicity (P7) regardless of what Subscribe stored.
	current, err := client.GetWatermark()
	if err != nil {
		return stats, err
	}
	stats.Watermark = current
	if stats.Watermark < previousWatermark {
		stats.Watermark = previousWatermark
		if err := client.SetWatermark(stats.Watermark); err != nil {
			return stats, err
		}
	}

	l.Debug("synchronization pass complete",
		"received", stats.Received, "duplicate_keys", stats.Duplicates,
		"verified", stats.Verified, "rejected", stats.Rejected, "upserted", stats.Upserted)
	return stats, nil
}
