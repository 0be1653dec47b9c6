// Package pkg defines the replicated BPM package descriptor and its two
// serializations: a canonical RLP wire format and a tagged-map JSON format
// (spec §4.1).
package pkg

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Signature is a detached 64-byte Ed25519 signature.
type Signature [64]byte

// Maintainer is a 32-byte Ed25519 public key identifying a package's publisher.
type Maintainer [32]byte

// Hex returns the lowercase hex encoding of the maintainer key, the form
// used as the composite-key component by the store.
func (m Maintainer) Hex() string { return hex.EncodeToString(m[:]) }

// Integrity describes how to verify a package's archive contents.
// Algorithm is currently always "SHA256"; the codec places no constraint on
// the algorithm name so other values can be introduced without a wire change.
type Integrity struct {
	Algorithm   string
	ArchiveHash []byte
}

// Package is the replicated unit: a signed, deterministically-encoded
// descriptor (spec §3).
type Package struct {
	Name       string
	Version    string
	Status     Status
	Maintainer Maintainer
	ArchiveURL string
	Integrity  Integrity
	// Sig is nil until the package has been signed. A Package with a nil
	// Sig is a legal in-memory (e.g. builder output) value; only Encode,
	// MarshalJSON, and LedgerClient.Publish refuse to proceed without one.
	Sig *Signature
}

// Signed reports whether a detached signature is attached.
func (p *Package) Signed() bool { return p.Sig != nil }

// Clone returns a deep copy. Packages in transit are value objects and are
// cloned freely (spec §3, Ownership).
func (p *Package) Clone() *Package {
	c := *p
	c.Integrity = Integrity{
		Algorithm:   p.Integrity.Algorithm,
		ArchiveHash: append([]byte(nil), p.Integrity.ArchiveHash...),
	}
	if p.Sig != nil {
		sig := *p.Sig
		c.Sig = &sig
	}
	return &c
}

// String renders a human-readable package summary, ported from the
// original source's Display implementation.
func (p *Package) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Package information ---\n\n")
	fmt.Fprintf(&b, "Name => %s \n", p.Name)
	fmt.Fprintf(&b, "Version => %s \n", p.Version)
	fmt.Fprintf(&b, "Status => %s \n", p.Status)
	fmt.Fprintf(&b, "Maintainer => %s\n", strings.ToUpper(p.Maintainer.Hex()))
	fmt.Fprintf(&b, "Package integrity :\n")
	fmt.Fprintf(&b, "\tAlgorithm => %s \n", p.Integrity.Algorithm)
	fmt.Fprintf(&b, "\tArchive hash => %s \n", hex.EncodeToString(p.Integrity.ArchiveHash))
	if p.Sig != nil {
		fmt.Fprintf(&b, "Signature => %s\n", hex.EncodeToString(p.Sig[:]))
	} else {
		fmt.Fprintf(&b, "Signature => <No signature attached>\n")
	}
	return b.String()
}
