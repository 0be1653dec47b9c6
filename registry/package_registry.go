package registry

import (
	"github.com/tos-network/bpmcore/pkg"
	"github.com/tos-network/bpmcore/store"
)

// PackageRegistry is a thin query facade over the store, always scoped to
// whichever ledger LedgerRegistry currently reports active (spec §4.6).
// It never selects a ledger itself; callers configure that through
// LedgerRegistry first.
type PackageRegistry struct {
	store   *store.Store
	ledgers *LedgerRegistry
}

// NewPackageRegistry builds a registry reading from s, scoped to whatever
// ledger ledgers reports active at call time.
func NewPackageRegistry(s *store.Store, ledgers *LedgerRegistry) *PackageRegistry {
	return &PackageRegistry{store: s, ledgers: ledgers}
}

func (r *PackageRegistry) activeLabel() (string, error) {
	client, err := r.ledgers.Active()
	if err != nil {
		return "", err
	}
	return client.Label(), nil
}

// FindReleases returns every record for (name, version) on the active ledger.
func (r *PackageRegistry) FindReleases(name, version string) ([]*pkg.Package, error) {
	label, err := r.activeLabel()
	if err != nil {
		return nil, err
	}
	return r.store.Packages.ReadByRelease(label, name, version)
}

// FindByMaintainer returns every record published by maintainerHex on the active ledger.
func (r *PackageRegistry) FindByMaintainer(maintainerHex string) ([]*pkg.Package, error) {
	label, err := r.activeLabel()
	if err != nil {
		return nil, err
	}
	return r.store.Packages.ReadByMaintainer(label, maintainerHex)
}

// Exists reports whether a record already exists for p's composite key on
// the active ledger.
func (r *PackageRegistry) Exists(p *pkg.Package) (bool, error) {
	label, err := r.activeLabel()
	if err != nil {
		return false, err
	}
	return r.store.Packages.Exists(label, p.Name, p.Version, p.Maintainer.Hex())
}

// Add inserts p as a new record on the active ledger.
func (r *PackageRegistry) Add(p *pkg.Package) error {
	label, err := r.activeLabel()
	if err != nil {
		return err
	}
	return r.store.Packages.Upsert(label, p)
}

// Update overwrites the existing record matching p's composite key on the
// active ledger. Like Add, it is implemented as an upsert (spec §4.3 -
// composite-key writes are always last-write-wins), so callers that need
// to distinguish "must already exist" should check Exists first.
func (r *PackageRegistry) Update(p *pkg.Package) error {
	label, err := r.activeLabel()
	if err != nil {
		return err
	}
	return r.store.Packages.Upsert(label, p)
}

// All returns every package record on the active ledger.
func (r *PackageRegistry) All() ([]*pkg.Package, error) {
	label, err := r.activeLabel()
	if err != nil {
		return nil, err
	}
	return r.store.Packages.ReadAllForLedger(label)
}
