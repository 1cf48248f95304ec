package registry

import "errors"

var (
	ErrUnknownSlot   = errors.New("registry: unknown slot")
	ErrBadDeviceSpec = errors.New("registry: bad device spec")
)
