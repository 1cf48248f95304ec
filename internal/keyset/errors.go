package keyset

import "errors"

// Domain errors for the keyset package.
var (
	// ErrBadKeyset is returned when a RedRat document cannot be decoded:
	// malformed XML, invalid base64, or an index out of range in Lengths.
	ErrBadKeyset = errors.New("keyset: bad keyset")

	// ErrUnknownDevice is returned when a device name has no entry in
	// the catalogue.
	ErrUnknownDevice = errors.New("keyset: unknown device")

	// ErrUnknownKey is returned when a key name has no entry under an
	// otherwise known device.
	ErrUnknownKey = errors.New("keyset: unknown key")
)
