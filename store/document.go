// Package store is BPM's local durable mirror: a goleveldb-backed embedded
// document store holding the package and ledger-watermark collections
// (spec §4.3). It exposes Mongo-like find-by-field queries over a flat
// key/value database by scanning a collection's key prefix and filtering
// in process, the same trick polodb's find() performs over its own pages.
package store

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// packageDocument is the persisted shape of a package record: binary
// fields are hex strings so the document round-trips through JSON cleanly
// and remains greppable on disk.
type packageDocument struct {
	LedgerLabel string `json:"ledger_label"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Status      uint8  `json:"status"`
	Maintainer  string `json:"maintainer"`
	ArchiveURL  string `json:"archive_url"`
	Algorithm   string `json:"algorithm"`
	ArchiveHash string `json:"archive_hash"`
	Sig         string `json:"sig"`
}

// ledgerDocument is the persisted shape of a ledger's sync watermark.
type ledgerDocument struct {
	Label              string `json:"label"`
	LastSynchronization int64 `json:"last_synchronization"`
}

const composedKeySeparator = ":"

// compositeKey builds the store key "ledger_label:name:version:maintainer_hex"
// used both as the goleveldb key and as the external document identifier
// (grounded on PackagesRepository::get_composite_key in the original source).
func compositeKey(ledgerLabel, name, version, maintainerHex string) string {
	return ledgerLabel + composedKeySeparator + name + composedKeySeparator + version + composedKeySeparator + maintainerHex
}

func marshalDoc(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: marshaling document: %w", err)
	}
	return raw, nil
}

func unmarshalDoc(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("store: unmarshaling document: %w", err)
	}
	return nil
}

func mustHex(b []byte) string { return hex.EncodeToString(b) }

func fromHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("store: invalid hex field %q: %w", s, err)
	}
	return b, nil
}
