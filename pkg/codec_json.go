package pkg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"unicode/utf8"
)

// byteArray marshals as a JSON array of integers ([1,2,3,...]), matching
// the original source's tagged-map JSON representation for binary fields.
type byteArray []byte

func (b byteArray) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

func (b *byteArray) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return fmt.Errorf("%w: byte array: %v", ErrMalformedStructure, err)
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("%w: byte array element %d out of range", ErrMalformedStructure, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// jsonIntegrity is the wire shape of the nested "integrity" object.
type jsonIntegrity struct {
	Algorithm   string    `json:"algorithm"`
	ArchiveHash byteArray `json:"archive_hash"`
}

// jsonPackage is the wire shape of the top-level tagged-map JSON object.
type jsonPackage struct {
	Name       string        `json:"name"`
	Version    string        `json:"version"`
	Status     uint8         `json:"status"`
	Maintainer byteArray     `json:"maintainer"`
	ArchiveURL string        `json:"archive_url"`
	Integrity  jsonIntegrity `json:"integrity"`
	Sig        byteArray     `json:"sig"`
}

// MarshalJSON renders the tagged-map external representation. It refuses
// to serialize an unsigned package, mirroring Encode's contract.
func (p *Package) MarshalJSON() ([]byte, error) {
	if p.Sig == nil {
		return nil, ErrMissingSignature
	}
	jp := jsonPackage{
		Name:       p.Name,
		Version:    p.Version,
		Status:     uint8(p.Status),
		Maintainer: byteArray(p.Maintainer[:]),
		ArchiveURL: p.ArchiveURL,
		Integrity: jsonIntegrity{
			Algorithm:   p.Integrity.Algorithm,
			ArchiveHash: byteArray(p.Integrity.ArchiveHash),
		},
		Sig: byteArray(p.Sig[:]),
	}
	return json.Marshal(&jp)
}

// requiredPackageFields and requiredIntegrityFields list the JSON object
// keys that must be present; "sig" is checked separately so its absence
// maps to ErrMissingSignature rather than a generic missing-field error.
var requiredPackageFields = []string{"name", "version", "status", "maintainer", "archive_url", "integrity"}
var requiredIntegrityFields = []string{"algorithm", "archive_hash"}

// parseObjectNoDup walks a JSON object with encoding/json's token reader,
// returning ErrDuplicateField on the first repeated key. encoding/json's
// struct-based Unmarshal silently accepts duplicate keys (last one wins);
// the external protocol requires rejecting them outright.
func parseObjectNoDup(data []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStructure, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", ErrMalformedStructure)
	}

	seen := make(map[string]struct{})
	out := make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedStructure, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string object key", ErrMalformedStructure)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateField, key)
		}
		seen[key] = struct{}{}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrMalformedStructure, key, err)
		}
		out[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStructure, err)
	}
	return out, nil
}

// UnmarshalJSON parses the tagged-map external representation, rejecting
// duplicate keys, missing required fields, and invalid values per spec
// §4.1. It never panics on malformed input.
func (p *Package) UnmarshalJSON(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedStructure, r)
		}
	}()

	fields, err := parseObjectNoDup(data)
	if err != nil {
		return err
	}
	for _, name := range requiredPackageFields {
		if _, ok := fields[name]; !ok {
			return fmt.Errorf("%w: missing field %q", ErrMalformedStructure, name)
		}
	}
	integrityFields, err := parseObjectNoDup(fields["integrity"])
	if err != nil {
		return err
	}
	for _, name := range requiredIntegrityFields {
		if _, ok := integrityFields[name]; !ok {
			return fmt.Errorf("%w: missing field %q", ErrMalformedStructure, name)
		}
	}
	sigRaw, hasSig := fields["sig"]
	if !hasSig {
		return ErrMissingSignature
	}

	var name, version, archiveURL string
	var status uint8
	var maintainer, sigBytes byteArray

	if err := json.Unmarshal(fields["name"], &name); err != nil {
		return fmt.Errorf("%w: name: %v", ErrMalformedStructure, err)
	}
	if err := json.Unmarshal(fields["version"], &version); err != nil {
		return fmt.Errorf("%w: version: %v", ErrMalformedStructure, err)
	}
	if err := json.Unmarshal(fields["status"], &status); err != nil {
		return fmt.Errorf("%w: status: %v", ErrMalformedStructure, err)
	}
	if err := json.Unmarshal(fields["archive_url"], &archiveURL); err != nil {
		return fmt.Errorf("%w: archive_url: %v", ErrMalformedStructure, err)
	}
	if err := maintainer.UnmarshalJSON(fields["maintainer"]); err != nil {
		return err
	}
	if err := sigBytes.UnmarshalJSON(sigRaw); err != nil {
		return err
	}

	if !utf8.ValidString(name) || !utf8.ValidString(version) || !utf8.ValidString(archiveURL) {
		return fmt.Errorf("%w: non-UTF8 text field", ErrMalformedStructure)
	}

	st, err := ParseStatus(status)
	if err != nil {
		return err
	}

	if len(maintainer) != 32 {
		return fmt.Errorf("%w: got %d bytes", ErrBadKeyLength, len(maintainer))
	}
	if len(sigBytes) != 64 {
		return fmt.Errorf("%w: got %d bytes", ErrBadSigLength, len(sigBytes))
	}

	u, uerr := url.Parse(archiveURL)
	if uerr != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBadURL, archiveURL)
	}

	var algorithm string
	var archiveHash byteArray
	if err := json.Unmarshal(integrityFields["algorithm"], &algorithm); err != nil {
		return fmt.Errorf("%w: integrity.algorithm: %v", ErrMalformedStructure, err)
	}
	if !utf8.ValidString(algorithm) {
		return fmt.Errorf("%w: non-UTF8 text field", ErrMalformedStructure)
	}
	if err := archiveHash.UnmarshalJSON(integrityFields["archive_hash"]); err != nil {
		return err
	}

	p.Name = name
	p.Version = version
	p.Status = st
	p.ArchiveURL = archiveURL
	copy(p.Maintainer[:], maintainer)
	p.Integrity = Integrity{Algorithm: algorithm, ArchiveHash: []byte(archiveHash)}
	var sig Signature
	copy(sig[:], sigBytes)
	p.Sig = &sig
	return nil
}
