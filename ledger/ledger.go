// Package ledger wraps a pluggable ledger transport with the idle-timeout
// subscription SyncEngine depends on and with pacing of Publish writes
// (spec §4.4). The transport itself - HCS, a chain RPC, a test double - is
// injected; this package never dials anything on its own.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/tos-network/bpmcore/log"
	"github.com/tos-network/bpmcore/pkg"
)

// DefaultIdleTimeout bounds how long Subscribe waits for the next message
// before treating the stream as drained (spec default: 1s, grounded on
// HederaBlockchainClient::NEXT_MESSAGE_TIMEOUT).
const DefaultIdleTimeout = time.Second

// ErrConnectionConfig is returned when a Client is misconfigured - a
// missing label, IO, or watermark store - so it could never reach a
// transport at all (spec §7 - LedgerError::ConnectionConfig).
var ErrConnectionConfig = errors.New("ledger: connection config error")

// ErrConnectionFailure wraps every transport-level Read/Write failure
// (spec §7 - LedgerError::ConnectionFailure). Callers discriminate it
// with errors.Is.
var ErrConnectionFailure = errors.New("ledger: connection failure")

// ErrNoPackagesData is returned by Subscribe when a pass ends cleanly
// (idle timeout or transport EOF) having delivered zero messages. It is
// informational, not fatal - spec §7 treats it as "nothing new" and
// callers should not abort a sync loop because of it.
var ErrNoPackagesData = errors.New("ledger: no packages data")

// IO is the capability a concrete ledger transport must provide. Read
// streams raw messages onto ch starting at sinceWatermark (the ledger's
// last recorded synchronization point, spec §1 - "read(out_chan,
// since_watermark)") until ctx is cancelled or the underlying connection
// ends; Write submits one outbound message. Implementations are expected
// to retry their own connection churn - IO exists for abstraction's
// sake, not for BPM core to manage reconnects directly.
type IO interface {
	Read(ctx context.Context, ch chan<- []byte, sinceWatermark int64) error
	Write(ctx context.Context, message []byte) error
}

// WatermarkStore is the persistence capability Client's GetWatermark/
// SetWatermark operations coordinate with (spec §4.4 - "get_watermark(),
// set_watermark(seconds): async, coordinate with Store"). *store.Ledgers
// satisfies this interface without either package importing the other.
type WatermarkStore interface {
	Watermark(label string) (int64, bool, error)
	SetWatermark(label string, ts int64) error
}

// Message pairs a decoded package with a transport-observed timestamp.
// Subscribe always sets Timestamp to zero, and the watermark it stores is
// wall-clock time at the end of the pass; Timestamp is not consulted.
type Message struct {
	Package   *pkg.Package
	Timestamp int64 // unix seconds; zero means "not supplied by the transport"
}

// Client adapts one configured ledger's IO into the Subscribe/Publish
// surface SyncEngine and PackageRegistry use, tracking the label the
// rest of the core keys its state by.
type Client struct {
	label       string
	io          IO
	watermarks  WatermarkStore
	idleTimeout time.Duration
	limiter     *rate.Limiter

	log log.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.idleTimeout = d }
}

// WithReconnectPacing bounds how often Publish may call io.Write: each
// Publish waits on this limiter first. Subscribe does not use it and never
// retries io.Read. r is attempts per second, b is the burst allowance.
func WithReconnectPacing(r rate.Limit, b int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, b) }
}

// New wraps io for ledger label, which must match the label used
// elsewhere for this ledger's store records and log context. watermarks
// backs GetWatermark/SetWatermark; it is typically a *store.Ledgers.
func New(label string, io IO, watermarks WatermarkStore, opts ...Option) (*Client, error) {
	if label == "" || io == nil || watermarks == nil {
		return nil, fmt.Errorf("%w: label, io, and watermarks are all required", ErrConnectionConfig)
	}
	c := &Client{
		label:       label,
		io:          io,
		watermarks:  watermarks,
		idleTimeout: DefaultIdleTimeout,
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		log:         log.New("pkg", "ledger", "label", label),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Label returns the ledger label this client was configured for.
func (c *Client) Label() string { return c.label }

// GetWatermark returns the last synchronization timestamp recorded for
// this ledger, or 0 if it has never synced (spec §4.4 - get_watermark()).
func (c *Client) GetWatermark() (int64, error) {
	ts, _, err := c.watermarks.Watermark(c.label)
	if err != nil {
		return 0, fmt.Errorf("ledger: get_watermark %s: %w", c.label, err)
	}
	return ts, nil
}

// SetWatermark persists this ledger's last synchronization timestamp
// (spec §4.4 - set_watermark(seconds)).
func (c *Client) SetWatermark(ts int64) error {
	if err := c.watermarks.SetWatermark(c.label, ts); err != nil {
		return fmt.Errorf("ledger: set_watermark %s: %w", c.label, err)
	}
	return nil
}

// Subscribe decodes every package on the underlying transport and sends it
// on out, stopping when ctx is cancelled, when the transport's Read call
// returns, or after idleTimeout elapses with no new message (spec §4.4 -
// idle-timeout-bounded subscribe). It never blocks past ctx's cancellation
// on a full out channel forever; a cancelled ctx always wins. The
// subscription resumes from this ledger's stored watermark and, on a
// clean end, advances it to wall-clock now (spec §4.4 - "before
// returning, it sets the watermark to now in wall-clock seconds").
func (c *Client) Subscribe(ctx context.Context, out chan<- Message) error {
	since, err := c.GetWatermark()
	if err != nil {
		return err
	}

	raw := make(chan []byte, 1)
	readDone := make(chan error, 1)

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	go func() {
		readDone <- c.io.Read(readCtx, raw, since)
	}()

	timer := time.NewTimer(c.idleTimeout)
	defer timer.Stop()

	var received int

	cleanEnd := func() error {
		if err := c.SetWatermark(time.Now().Unix()); err != nil {
			return err
		}
		if received == 0 {
			return ErrNoPackagesData
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				c.log.Warn("ledger read ended with error", "err", err)
				return fmt.Errorf("ledger: reading %s: %w: %w", c.label, ErrConnectionFailure, err)
			}
			return cleanEnd()

		case <-timer.C:
			c.log.Debug("subscribe idle timeout elapsed, ending pass")
			return cleanEnd()

		case payload := <-raw:
			received++
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.idleTimeout)

			p, err := pkg.Decode(payload)
			if err != nil {
				c.log.Debug("skipping undecodable message", "err", err)
				continue
			}
			select {
			case out <- Message{Package: p, Timestamp: 0}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Publish submits a signed package to the ledger. It pauses for
// reconnect pacing before attempting the write.
func (c *Client) Publish(ctx context.Context, p *pkg.Package) error {
	if !p.Signed() {
		return pkg.ErrMissingSignature
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	payload, err := p.Encode()
	if err != nil {
		return err
	}
	c.log.Info("submitting package", "name", p.Name, "version", p.Version)
	if err := c.io.Write(ctx, payload); err != nil {
		return fmt.Errorf("ledger: publishing to %s: %w: %w", c.label, ErrConnectionFailure, err)
	}
	return nil
}
