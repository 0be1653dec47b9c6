package pkg

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/rlp"
)

// wireIntegrity is the 2-element RLP representation of Integrity.
type wireIntegrity struct {
	Algorithm   string
	ArchiveHash []byte
}

// wireData is the canonical 6-element list signed over: name, version,
// status, maintainer, archive_url, integrity (spec §4.1 "digest").
// Field order is RLP list order; do not reorder without a wire-format break.
type wireData struct {
	Name       string
	Version    string
	Status     uint8
	Maintainer []byte
	ArchiveURL string
	Integrity  wireIntegrity
}

// wireFull is the 7-element list written to the ledger: the data list
// followed by the detached signature.
type wireFull struct {
	Name       string
	Version    string
	Status     uint8
	Maintainer []byte
	ArchiveURL string
	Integrity  wireIntegrity
	Sig        []byte
}

func (p *Package) toWireData() wireData {
	return wireData{
		Name:       p.Name,
		Version:    p.Version,
		Status:     uint8(p.Status),
		Maintainer: append([]byte(nil), p.Maintainer[:]...),
		ArchiveURL: p.ArchiveURL,
		Integrity: wireIntegrity{
			Algorithm:   p.Integrity.Algorithm,
			ArchiveHash: append([]byte(nil), p.Integrity.ArchiveHash...),
		},
	}
}

// Digest computes the canonical signing digest: SHA256 over the RLP
// encoding of the package's 6-element data list, excluding the signature
// (spec §4.1 / §4.2).
func (p *Package) Digest() ([32]byte, error) {
	enc, err := rlp.EncodeToBytes(p.toWireData())
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: encoding digest payload: %v", ErrMalformedStructure, err)
	}
	return sha256.Sum256(enc), nil
}

// Encode produces the canonical 7-element RLP wire format. It refuses to
// encode an unsigned package.
func (p *Package) Encode() ([]byte, error) {
	if p.Sig == nil {
		return nil, ErrMissingSignature
	}
	w := wireFull{
		Name:       p.Name,
		Version:    p.Version,
		Status:     uint8(p.Status),
		Maintainer: append([]byte(nil), p.Maintainer[:]...),
		ArchiveURL: p.ArchiveURL,
		Integrity: wireIntegrity{
			Algorithm:   p.Integrity.Algorithm,
			ArchiveHash: append([]byte(nil), p.Integrity.ArchiveHash...),
		},
		Sig: append([]byte(nil), p.Sig[:]...),
	}
	enc, err := rlp.EncodeToBytes(&w)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding package: %v", ErrMalformedStructure, err)
	}
	return enc, nil
}

// Decode parses the canonical 7-element RLP wire format, validating every
// field per spec §4.1's error taxonomy. It never panics on malformed input.
func Decode(data []byte) (pkg *Package, err error) {
	defer func() {
		if r := recover(); r != nil {
			pkg, err = nil, fmt.Errorf("%w: %v", ErrMalformedStructure, r)
		}
	}()

	var w wireFull
	if decErr := rlp.DecodeBytes(data, &w); decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStructure, decErr)
	}

	if !utf8.ValidString(w.Name) || !utf8.ValidString(w.Version) ||
		!utf8.ValidString(w.ArchiveURL) || !utf8.ValidString(w.Integrity.Algorithm) {
		return nil, fmt.Errorf("%w: non-UTF8 text field", ErrMalformedStructure)
	}

	status, err := ParseStatus(w.Status)
	if err != nil {
		return nil, err
	}

	if len(w.Maintainer) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrBadKeyLength, len(w.Maintainer))
	}

	if len(w.Sig) != 64 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrBadSigLength, len(w.Sig))
	}

	u, uerr := url.Parse(w.ArchiveURL)
	if uerr != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadURL, w.ArchiveURL)
	}

	p := &Package{
		Name:       w.Name,
		Version:    w.Version,
		Status:     status,
		ArchiveURL: w.ArchiveURL,
		Integrity: Integrity{
			Algorithm:   w.Integrity.Algorithm,
			ArchiveHash: append([]byte(nil), w.Integrity.ArchiveHash...),
		},
	}
	copy(p.Maintainer[:], w.Maintainer)
	var sig Signature
	copy(sig[:], w.Sig)
	p.Sig = &sig

	return p, nil
}
