package store

import (
	"github.com/tos-network/bpmcore/pkg"
)

// Packages is the "packages" collection: one durable, last-write-wins
// record per (ledger, name, version, maintainer) tuple.
type Packages struct{ s *Store }

func packageKey(ledgerLabel, name, version, maintainerHex string) []byte {
	return []byte(packagesPrefix + compositeKey(ledgerLabel, name, version, maintainerHex))
}

func toDocument(ledgerLabel string, p *pkg.Package) packageDocument {
	doc := packageDocument{
		LedgerLabel: ledgerLabel,
		Name:        p.Name,
		Version:     p.Version,
		Status:      uint8(p.Status),
		Maintainer:  p.Maintainer.Hex(),
		ArchiveURL:  p.ArchiveURL,
		Algorithm:   p.Integrity.Algorithm,
		ArchiveHash: mustHex(p.Integrity.ArchiveHash),
	}
	if p.Sig != nil {
		doc.Sig = mustHex(p.Sig[:])
	}
	return doc
}

func fromDocument(doc packageDocument) (*pkg.Package, error) {
	status, err := pkg.ParseStatus(doc.Status)
	if err != nil {
		return nil, err
	}
	maintainerBytes, err := fromHex(doc.Maintainer)
	if err != nil {
		return nil, err
	}
	archiveHash, err := fromHex(doc.ArchiveHash)
	if err != nil {
		return nil, err
	}

	p := &pkg.Package{
		Name:       doc.Name,
		Version:    doc.Version,
		Status:     status,
		ArchiveURL: doc.ArchiveURL,
		Integrity:  pkg.Integrity{Algorithm: doc.Algorithm, ArchiveHash: archiveHash},
	}
	copy(p.Maintainer[:], maintainerBytes)

	if doc.Sig != "" {
		sigBytes, err := fromHex(doc.Sig)
		if err != nil {
			return nil, err
		}
		var sig pkg.Signature
		copy(sig[:], sigBytes)
		p.Sig = &sig
	}
	return p, nil
}

// Upsert inserts or overwrites the record for p under ledgerLabel,
// last-write-wins on the composite key (spec §4.3).
func (c *Packages) Upsert(ledgerLabel string, p *pkg.Package) error {
	doc := toDocument(ledgerLabel, p)
	raw, err := marshalDoc(doc)
	if err != nil {
		return err
	}
	key := packageKey(ledgerLabel, p.Name, p.Version, p.Maintainer.Hex())
	return c.s.put(key, raw)
}

// ReadByKey looks up a package by its exact composite key.
func (c *Packages) ReadByKey(ledgerLabel, name, version, maintainerHex string) (*pkg.Package, bool, error) {
	raw, ok, err := c.s.get(packageKey(ledgerLabel, name, version, maintainerHex))
	if err != nil || !ok {
		return nil, ok, err
	}
	var doc packageDocument
	if err := unmarshalDoc(raw, &doc); err != nil {
		return nil, false, err
	}
	p, err := fromDocument(doc)
	return p, err == nil, err
}

// Exists reports whether a record exists for the given composite key.
func (c *Packages) Exists(ledgerLabel, name, version, maintainerHex string) (bool, error) {
	_, ok, err := c.ReadByKey(ledgerLabel, name, version, maintainerHex)
	return ok, err
}

// ReadAll returns every package record across every ledger.
func (c *Packages) ReadAll() ([]*pkg.Package, error) {
	raws, err := c.s.scanPrefix([]byte(packagesPrefix))
	if err != nil {
		return nil, err
	}
	return decodeAll(raws)
}

// ReadByRelease returns every record matching (ledgerLabel, name, version),
// scoped to ledgerLabel's key prefix and filtered in process (spec §4.3 -
// a find-by-field query over a collection with no secondary indexes).
func (c *Packages) ReadByRelease(ledgerLabel, name, version string) ([]*pkg.Package, error) {
	all, err := c.ReadAllForLedger(ledgerLabel)
	if err != nil {
		return nil, err
	}
	var out []*pkg.Package
	for _, p := range all {
		if p.Name == name && p.Version == version {
			out = append(out, p)
		}
	}
	return out, nil
}

// ReadByMaintainer returns every record published by maintainerHex within ledgerLabel.
func (c *Packages) ReadByMaintainer(ledgerLabel, maintainerHex string) ([]*pkg.Package, error) {
	all, err := c.ReadAllForLedger(ledgerLabel)
	if err != nil {
		return nil, err
	}
	var out []*pkg.Package
	for _, p := range all {
		if p.Maintainer.Hex() == maintainerHex {
			out = append(out, p)
		}
	}
	return out, nil
}

// ReadAllForLedger returns every package record scoped to a single ledger,
// scanning only that ledger's key prefix.
func (c *Packages) ReadAllForLedger(ledgerLabel string) ([]*pkg.Package, error) {
	raws, err := c.s.scanPrefix([]byte(packagesPrefix + ledgerLabel + composedKeySeparator))
	if err != nil {
		return nil, err
	}
	return decodeAll(raws)
}

func decodeAll(raws [][]byte) ([]*pkg.Package, error) {
	out := make([]*pkg.Package, 0, len(raws))
	for _, raw := range raws {
		var doc packageDocument
		if err := unmarshalDoc(raw, &doc); err != nil {
			return nil, err
		}
		p, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
