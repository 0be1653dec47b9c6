package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/bpmcore/pkg"
	"github.com/tos-network/bpmcore/signing"
)

// fakeIO replays a fixed set of encoded messages on Read and records
// whatever is handed to Write.
type fakeIO struct {
	messages       [][]byte
	written        [][]byte
	readErr        error
	sinceWatermark int64
}

func (f *fakeIO) Read(ctx context.Context, ch chan<- []byte, sinceWatermark int64) error {
	f.sinceWatermark = sinceWatermark
	for _, m := range f.messages {
		select {
		case ch <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.readErr != nil {
		return f.readErr
	}
	<-ctx.Done()
	return nil
}

func (f *fakeIO) Write(ctx context.Context, message []byte) error {
	f.written = append(f.written, message)
	return nil
}

// fakeWatermarks is an in-memory stand-in for *store.Ledgers.
type fakeWatermarks struct {
	mu sync.Mutex
	m  map[string]int64
}

func newFakeWatermarks() *fakeWatermarks { return &fakeWatermarks{m: make(map[string]int64)} }

func (f *fakeWatermarks) Watermark(label string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.m[label]
	return ts, ok, nil
}

func (f *fakeWatermarks) SetWatermark(label string, ts int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[label] = ts
	return nil
}

func signedPackage(t *testing.T, name string) *pkg.Package {
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
	return p
}

func TestNewRejectsMissingConfig(t *testing.T) {
	_, err := New("", &fakeIO{}, newFakeWatermarks())
	require.ErrorIs(t, err, ErrConnectionConfig)

	_, err = New("main", nil, newFakeWatermarks())
	require.ErrorIs(t, err, ErrConnectionConfig)

	_, err = New("main", &fakeIO{}, nil)
	require.ErrorIs(t, err, ErrConnectionConfig)
}

func TestSubscribeDecodesMessagesThenIdlesOut(t *testing.T) {
	p1 := signedPackage(t, "left-pad")
	p2 := signedPackage(t, "right-pad")
	enc1, err := p1.Encode()
	require.NoError(t, err)
	enc2, err := p2.Encode()
	require.NoError(t, err)

	io := &fakeIO{messages: [][]byte{enc1, enc2}}
	watermarks := newFakeWatermarks()
	c, err := New("main", io, watermarks, WithIdleTimeout(50*time.Millisecond))
	require.NoError(t, err)

	out := make(chan Message, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = c.Subscribe(ctx, out)
	require.NoError(t, err)
	close(out)

	var names []string
	for m := range out {
		names = append(names, m.Package.Name)
	}
	require.ElementsMatch(t, []string{"left-pad", "right-pad"}, names)

	ts, ok, err := watermarks.Watermark("main")
	require.NoError(t, err)
	require.True(t, ok, "a clean pass with messages must advance the watermark")
	require.Greater(t, ts, int64(0))
}

func TestSubscribePassesSinceWatermarkToIO(t *testing.T) {
	io := &fakeIO{}
	watermarks := newFakeWatermarks()
	require.NoError(t, watermarks.SetWatermark("main", 12345))
	c, err := New("main", io, watermarks, WithIdleTimeout(20*time.Millisecond))
	require.NoError(t, err)

	out := make(chan Message, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = c.Subscribe(ctx, out)
	require.ErrorIs(t, err, ErrNoPackagesData)
	require.Equal(t, int64(12345), io.sinceWatermark)
}

func TestSubscribeEmptyPassReturnsNoPackagesData(t *testing.T) {
	io := &fakeIO{}
	c, err := New("main", io, newFakeWatermarks(), WithIdleTimeout(20*time.Millisecond))
	require.NoError(t, err)

	out := make(chan Message, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = c.Subscribe(ctx, out)
	require.ErrorIs(t, err, ErrNoPackagesData)
}

func TestSubscribeSkipsUndecodableMessages(t *testing.T) {
	io := &fakeIO{messages: [][]byte{{0xff, 0xff}}}
	c, err := New("main", io, newFakeWatermarks(), WithIdleTimeout(30*time.Millisecond))
	require.NoError(t, err)

	out := make(chan Message, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = c.Subscribe(ctx, out)
	require.NoError(t, err)
	close(out)

	require.Empty(t, out)
}

func TestSubscribeRespectsContextCancellation(t *testing.T) {
	io := &fakeIO{}
	c, err := New("main", io, newFakeWatermarks(), WithIdleTimeout(5*time.Second))
	require.NoError(t, err)

	out := make(chan Message)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Subscribe(ctx, out)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSubscribeWrapsTransportFailure(t *testing.T) {
	io := &fakeIO{readErr: errors.New("boom")}
	c, err := New("main", io, newFakeWatermarks(), WithIdleTimeout(5*time.Second))
	require.NoError(t, err)

	out := make(chan Message)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = c.Subscribe(ctx, out)
	require.ErrorIs(t, err, ErrConnectionFailure)
}

func TestPublishRejectsUnsignedPackage(t *testing.T) {
	io := &fakeIO{}
	c, err := New("main", io, newFakeWatermarks())
	require.NoError(t, err)

	p, err := pkg.NewBuilder().
		Name("n").Version("1.0.0").
		ArchiveURL("https://example.com/n.tgz").
		Integrity("SHA256", []byte{1}).
		Build()
	require.NoError(t, err)

	err = c.Publish(context.Background(), p)
	require.ErrorIs(t, err, pkg.ErrMissingSignature)
}

func TestPublishWritesEncodedPackage(t *testing.T) {
	io := &fakeIO{}
	c, err := New("main", io, newFakeWatermarks())
	require.NoError(t, err)
	p := signedPackage(t, "left-pad")

	require.NoError(t, c.Publish(context.Background(), p))
	require.Len(t, io.written, 1)

	decoded, err := pkg.Decode(io.written[0])
	require.NoError(t, err)
	require.Equal(t, p.Name, decoded.Name)
}

func TestLabel(t *testing.T) {
	c, err := New("testnet", &fakeIO{}, newFakeWatermarks())
	require.NoError(t, err)
	require.Equal(t, "testnet", c.Label())
}
