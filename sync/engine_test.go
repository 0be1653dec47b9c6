package sync

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/bpmcore/ledger"
	"github.com/tos-network/bpmcore/pkg"
	"github.com/tos-network/bpmcore/registry"
	"github.com/tos-network/bpmcore/signing"
	"github.com/tos-network/bpmcore/store"
)

type fakeIO struct {
	messages [][]byte
}

func (f *fakeIO) Read(ctx context.Context, ch chan<- []byte, sinceWatermark int64) error {
	for _, m := range f.messages {
		select {
		case ch <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return nil
}

func (f *fakeIO) Write(ctx context.Context, message []byte) error { return nil }

func signedPackage(t *testing.T, name string) (*pkg.Package, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	var m pkg.Maintainer
	copy(m[:], pub)
	p, err := pkg.NewBuilder().
		Name(name).
		Version("1.0.0").
		Maintainer(m).
		ArchiveURL("https://registry.example.com/" + name + "-1.0.0.tgz").
		Integrity("SHA256", []byte{1, 2, 3}).
		Build()
	require.NoError(t, err)
	_, err = signing.Sign(p, priv)
	require.NoError(t, err)
	return p, priv
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newActiveEngine wires an Engine against a freshly-configured, selected
// ledger, the way cmd/bpmcore/sync.go does for a real run.
func newActiveEngine(t *testing.T, s *store.Store, label string, io ledger.IO, idleTimeout time.Duration) *Engine {
	t.Helper()
	client, err := ledger.New(label, io, s.Ledgers, ledger.WithIdleTimeout(idleTimeout))
	require.NoError(t, err)

	ledgers := registry.NewLedgerRegistry(s)
	require.NoError(t, ledgers.Configure(client))
	require.NoError(t, ledgers.SetActive(label))

	packages := registry.NewPackageRegistry(s, ledgers)
	return NewEngine(ledgers, packages)
}

func TestRunUpsertsVerifiedPackages(t *testing.T) {
	s := openStore(t)

	p, _ := signedPackage(t, "left-pad")
	enc, err := p.Encode()
	require.NoError(t, err)

	engine := newActiveEngine(t, s, "main", &fakeIO{messages: [][]byte{enc}}, 30*time.Millisecond)

	out := make(chan *pkg.Package, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats, err := engine.Run(ctx, out)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Received)
	require.Equal(t, 1, stats.Verified)
	require.Equal(t, 1, stats.Upserted)
	require.Equal(t, 0, stats.Rejected)

	got, ok, err := s.Packages.ReadByKey("main", "left-pad", "1.0.0", p.Maintainer.Hex())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, p.Name, got.Name)

	close(out)
	var forwarded []*pkg.Package
	for fp := range out {
		forwarded = append(forwarded, fp)
	}
	require.Len(t, forwarded, 1)
}

func TestRunRejectsTamperedSignature(t *testing.T) {
	s := openStore(t)

	p, _ := signedPackage(t, "left-pad")
	p.Version = "9.9.9" // invalidates the signature post-hoc
	enc, err := p.Encode()
	require.NoError(t, err)

	engine := newActiveEngine(t, s, "main", &fakeIO{messages: [][]byte{enc}}, 30*time.Millisecond)
	out := make(chan *pkg.Package, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats, err := engine.Run(ctx, out)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Rejected)
	require.Equal(t, 0, stats.Upserted)

	_, ok, err := s.Packages.ReadByKey("main", "left-pad", "9.9.9", p.Maintainer.Hex())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRunAdvancesWatermarkMonotonically(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Ledgers.SetWatermark("main", 1<<40)) // far future, simulating a prior pass

	p, _ := signedPackage(t, "left-pad")
	enc, err := p.Encode()
	require.NoError(t, err)
	engine := newActiveEngine(t, s, "main", &fakeIO{messages: [][]byte{enc}}, 30*time.Millisecond)

	out := make(chan *pkg.Package, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats, err := engine.Run(ctx, out)
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.Watermark, int64(1<<40), "watermark must never move backward")
}

func TestRunAppliesLastWriteWinsWithinPass(t *testing.T) {
	s := openStore(t)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	var m pkg.Maintainer
	copy(m[:], pub)

	base := func(status pkg.Status) *pkg.Package {
		p, err := pkg.NewBuilder().
			Name("left-pad").
			Version("1.0.0").
			Status(status).
			Maintainer(m).
			ArchiveURL("https://registry.example.com/left-pad-1.0.0.tgz").
			Integrity("SHA256", []byte{1, 2, 3}).
			Build()
		require.NoError(t, err)
		_, err = signing.Sign(p, priv)
		require.NoError(t, err)
		return p
	}

	p1 := base(pkg.StatusFine)
	p2 := base(pkg.StatusOutdated)
	enc1, err := p1.Encode()
	require.NoError(t, err)
	enc2, err := p2.Encode()
	require.NoError(t, err)

	// Same composite key, different status: the later message must win,
	// not be silently dropped as a "duplicate" (spec I4, scenario S3).
	engine := newActiveEngine(t, s, "main", &fakeIO{messages: [][]byte{enc1, enc2}}, 30*time.Millisecond)
	out := make(chan *pkg.Package, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats, err := engine.Run(ctx, out)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Received)
	require.Equal(t, 1, stats.Duplicates)
	require.Equal(t, 2, stats.Verified)
	require.Equal(t, 2, stats.Upserted)

	got, ok, err := s.Packages.ReadByKey("main", "left-pad", "1.0.0", m.Hex())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pkg.StatusOutdated, got.Status, "the later message's status must be authoritative")

	close(out)
	var forwarded []*pkg.Package
	for fp := range out {
		forwarded = append(forwarded, fp)
	}
	require.Len(t, forwarded, 2, "both messages must still be forwarded")
}

func TestRunRequiresActiveLedger(t *testing.T) {
	s := openStore(t)
	ledgers := registry.NewLedgerRegistry(s)
	packages := registry.NewPackageRegistry(s, ledgers)
	engine := NewEngine(ledgers, packages)

	out := make(chan *pkg.Package, 1)
	_, err := engine.Run(context.Background(), out)
	require.ErrorIs(t, err, registry.ErrNoActiveLedger)
}
