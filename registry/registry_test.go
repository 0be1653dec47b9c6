package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/bpmcore/ledger"
	"github.com/tos-network/bpmcore/pkg"
	"github.com/tos-network/bpmcore/store"
)

type noopIO struct{}

func (noopIO) Read(ctx context.Context, ch chan<- []byte, sinceWatermark int64) error {
	<-ctx.Done()
	return nil
}
func (noopIO) Write(ctx context.Context, message []byte) error { return nil }

func newClient(t *testing.T, s *store.Store, label string) *ledger.Client {
	t.Helper()
	c, err := ledger.New(label, noopIO{}, s.Ledgers)
	require.NoError(t, err)
	return c
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testPackage(t *testing.T, name string) *pkg.Package {
	t.Helper()
	var m pkg.Maintainer
	m[0] = 1
	p, err := pkg.NewBuilder().
		Name(name).Version("1.0.0").Maintainer(m).
		ArchiveURL("https://example.com/" + name + ".tgz").
		Integrity("SHA256", []byte{1}).
		Build()
	require.NoError(t, err)
	var sig pkg.Signature
	p.Sig = &sig
	return p
}

func TestLedgerRegistryLifecycle(t *testing.T) {
	s := openStore(t)
	r := NewLedgerRegistry(s)
	require.Equal(t, StateInit, r.State())

	client := newClient(t, s, "main")
	require.NoError(t, r.Configure(client))
	require.Equal(t, StateConfigured, r.State())

	_, err := r.Active()
	require.ErrorIs(t, err, ErrNoActiveLedger)

	require.NoError(t, r.SetActive("main"))
	require.Equal(t, StateActive, r.State())

	active, err := r.Active()
	require.NoError(t, err)
	require.Equal(t, "main", active.Label())
}

func TestLedgerRegistrySetActiveUnknownLabel(t *testing.T) {
	s := openStore(t)
	r := NewLedgerRegistry(s)
	err := r.SetActive("nope")
	require.ErrorIs(t, err, ErrUnknownLedger)
}

func TestLedgerRegistryConfigurePreservesWatermark(t *testing.T) {
	s := openStore(t)
	r := NewLedgerRegistry(s)
	client := newClient(t, s, "main")
	require.NoError(t, r.Configure(client))

	require.NoError(t, s.Ledgers.SetWatermark("main", 99))
	require.NoError(t, r.Configure(client))

	ts, ok, err := s.Ledgers.Watermark("main")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(99), ts)
}

func TestPackageRegistryRequiresActiveLedger(t *testing.T) {
	s := openStore(t)
	ledgers := NewLedgerRegistry(s)
	pr := NewPackageRegistry(s, ledgers)

	_, err := pr.All()
	require.ErrorIs(t, err, ErrNoActiveLedger)
}

func TestPackageRegistryScopedToActiveLedger(t *testing.T) {
	s := openStore(t)
	ledgers := NewLedgerRegistry(s)
	require.NoError(t, ledgers.Configure(newClient(t, s, "main")))
	require.NoError(t, ledgers.Configure(newClient(t, s, "other")))
	require.NoError(t, ledgers.SetActive("main"))

	pr := NewPackageRegistry(s, ledgers)
	p := testPackage(t, "left-pad")
	require.NoError(t, pr.Add(p))

	// Directly insert into the "other" ledger; it must stay invisible.
	require.NoError(t, s.Packages.Upsert("other", testPackage(t, "right-pad")))

	all, err := pr.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "left-pad", all[0].Name)

	exists, err := pr.Exists(p)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestPackageRegistryFindReleasesAndMaintainer(t *testing.T) {
	s := openStore(t)
	ledgers := NewLedgerRegistry(s)
	require.NoError(t, ledgers.Configure(newClient(t, s, "main")))
	require.NoError(t, ledgers.SetActive("main"))

	pr := NewPackageRegistry(s, ledgers)
	p := testPackage(t, "left-pad")
	require.NoError(t, pr.Add(p))

	releases, err := pr.FindReleases("left-pad", "1.0.0")
	require.NoError(t, err)
	require.Len(t, releases, 1)

	byMaintainer, err := pr.FindByMaintainer(p.Maintainer.Hex())
	require.NoError(t, err)
	require.Len(t, byMaintainer, 1)
}
