package pkg

import "errors"

// Decode/encode error taxonomy (spec §4.1). Use errors.Is against these
// sentinels; concrete errors returned by Decode/Encode/UnmarshalJSON wrap
// one of these with additional context via fmt.Errorf("%w: ...", ...).
var (
	// ErrMalformedStructure covers wrong list arity, wrong element shape,
	// and non-UTF8 text in decoded fields.
	ErrMalformedStructure = errors.New("pkg: malformed structure")

	// ErrUnknownStatus is returned when a decoded status byte is outside 0..=5.
	ErrUnknownStatus = errors.New("pkg: unknown package status")

	// ErrBadKeyLength is returned when the maintainer key is not 32 bytes.
	ErrBadKeyLength = errors.New("pkg: maintainer key must be 32 bytes")

	// ErrBadSigLength is returned when the signature is not 64 bytes.
	ErrBadSigLength = errors.New("pkg: signature must be 64 bytes")

	// ErrBadURL is returned when archive_url does not parse as an absolute URL.
	ErrBadURL = errors.New("pkg: archive_url must be an absolute URL")

	// ErrMissingSignature is returned both when the JSON sig field is
	// absent, and when a caller attempts to Encode/MarshalJSON a Package
	// with no attached signature (the "Encode contract" in spec §4.1).
	ErrMissingSignature = errors.New("pkg: package must carry a signature")

	// ErrDuplicateField is returned when a JSON object repeats a key.
	ErrDuplicateField = errors.New("pkg: duplicate field")
)
