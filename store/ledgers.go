package store

// Ledgers is the "ledgers" collection: one watermark record per configured
// ledger, tracking the last synchronization timestamp observed for it
// (spec §4.5 - SyncEngine / LedgerRegistry watermark persistence).
type Ledgers struct{ s *Store }

func ledgerKey(label string) []byte { return []byte(ledgersPrefix + label) }

// Watermark returns the last synchronization timestamp recorded for label,
// or (0, false) if the ledger has never been configured.
func (c *Ledgers) Watermark(label string) (int64, bool, error) {
	raw, ok, err := c.s.get(ledgerKey(label))
	if err != nil || !ok {
		return 0, ok, err
	}
	var doc ledgerDocument
	if err := unmarshalDoc(raw, &doc); err != nil {
		return 0, false, err
	}
	return doc.LastSynchronization, true, nil
}

// SetWatermark persists label's last synchronization timestamp. Callers
// must never write a value smaller than what Watermark last returned
// (spec invariant: the watermark only moves forward).
func (c *Ledgers) SetWatermark(label string, ts int64) error {
	raw, err := marshalDoc(ledgerDocument{Label: label, LastSynchronization: ts})
	if err != nil {
		return err
	}
	return c.s.put(ledgerKey(label), raw)
}

// EnsureConfigured returns the current watermark, creating a fresh
// zero-watermark record if label has never been seen (grounded on
// init_blockchains' load-or-create pattern in the original source).
func (c *Ledgers) EnsureConfigured(label string) (int64, error) {
	ts, ok, err := c.Watermark(label)
	if err != nil {
		return 0, err
	}
	if ok {
		return ts, nil
	}
	if err := c.SetWatermark(label, 0); err != nil {
		return 0, err
	}
	return 0, nil
}
