package gcprotocol

import (
	"errors"
	"strconv"
)

// Domain errors for the gcprotocol package.
var (
	// ErrMalformedFrame is returned when a response line cannot be
	// parsed into any recognised frame shape.
	ErrMalformedFrame = errors.New("gcprotocol: malformed response frame")
)

// DeviceError represents an ERR_/ERR response from the device, carrying
// the numeric code the firmware reported.
type DeviceError struct {
	Code int
}

func (e *DeviceError) Error() string {
	return "gcprotocol: device error " + strconv.Itoa(e.Code)
}
