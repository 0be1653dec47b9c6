// Package signing produces and verifies the detached Ed25519 signatures
// BPM packages carry over their canonical digest (spec §4.2).
package signing

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/hdevalence/ed25519consensus"

	"github.com/tos-network/bpmcore/log"
	"github.com/tos-network/bpmcore/pkg"
)

var (
	// ErrWrongKeySize is returned when a caller hands in a private key that
	// is not a standard 64-byte Ed25519 expanded key.
	ErrWrongKeySize = errors.New("signing: private key must be 64 bytes")

	// ErrMaintainerMismatch is returned by Sign when the signing key's
	// public half does not match the package's declared maintainer.
	ErrMaintainerMismatch = errors.New("signing: private key does not match package maintainer")
)

var log15 = log.New("pkg", "signing")

// Sign computes the package's digest and attaches a detached signature
// produced with priv, mutating p in place and returning it for chaining.
// priv's public half must equal p.Maintainer.
func Sign(p *pkg.Package, priv ed25519.PrivateKey) (*pkg.Package, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrWrongKeySize, len(priv))
	}
	pub := priv.Public().(ed25519.PublicKey)
	if pkg.Maintainer(p.Maintainer).Hex() != pkg.Maintainer(toMaintainer(pub)).Hex() {
		return nil, ErrMaintainerMismatch
	}

	digest, err := p.Digest()
	if err != nil {
		return nil, err
	}

	raw := ed25519.Sign(priv, digest[:])
	var sig pkg.Signature
	copy(sig[:], raw)
	p.Sig = &sig

	log15.Debug("signed package", "name", p.Name, "version", p.Version)
	return p, nil
}

// Verify checks p's attached signature against its maintainer key and
// digest using ed25519consensus.Verify, which applies the ZIP215 rules:
// a non-canonical scalar S is rejected, but small-order public keys and
// non-canonical point encodings of the key or of R are accepted.
//
// It reports false, never an error, on any verification failure; a nil
// signature is simply unverified.
func Verify(p *pkg.Package) bool {
	if p.Sig == nil {
		log15.Debug("verification skipped: no signature attached", "name", p.Name)
		return false
	}

	digest, err := p.Digest()
	if err != nil {
		log15.Debug("verification failed: could not compute digest", "name", p.Name, "err", err)
		return false
	}

	ok := ed25519consensus.Verify(ed25519.PublicKey(p.Maintainer[:]), digest[:], p.Sig[:])
	log15.Debug("verified package signature", "name", p.Name, "ok", ok)
	return ok
}

func toMaintainer(pub ed25519.PublicKey) pkg.Maintainer {
	var m pkg.Maintainer
	copy(m[:], pub)
	return m
}
