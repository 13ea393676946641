package nfc

import (
	"errors"
	"strings"
	"time"
)

// DeviceStatus represents the status of the NFC device as shown to the user.
type DeviceStatus struct {
	Connected   bool
	Message     string
	CardPresent bool
}

// Constants for device recovery
const (
	MaxRetries          = 5
	BaseDelay           = 500 * time.Millisecond
	MaxReconnectTries   = 10
	ReconnectDelay      = time.Second * 2
	DeviceCheckInterval = time.Second * 2 // Interval to check for new devices
	DeviceEnumRetries   = 3               // Number of retries for device enumeration
)

// Polling intervals
const (
	DefaultPollingInterval    = 100 * time.Millisecond
	DeviceResetWaitTime       = 3 * time.Second
	DeviceErrorCooldownPeriod = 10 * time.Second
	MaxRetriesCooldownPeriod  = 30 * time.Second
	PostErrorPauseTime        = 1 * time.Second

	// PresenceTimeout is how long a tag may be missing from polls before it
	// counts as removed. Readers occasionally drop a tag for a single poll.
	PresenceTimeout = time.Second
)

// Sentinel errors for device operations
var (
	// ErrTimeout indicates a timeout occurred during device communication
	ErrTimeout = errors.New("device operation timed out")

	// ErrDeviceClosed indicates the device connection was closed
	ErrDeviceClosed = errors.New("device closed")

	// ErrIO indicates an input/output error with the device
	ErrIO = errors.New("device I/O error")

	// ErrDeviceConfig indicates a device configuration error
	ErrDeviceConfig = errors.New("device configuration error")

	// ErrACR122Specific indicates an ACR122-specific error requiring cooldown
	ErrACR122Specific = errors.New("ACR122 device error")
)

// noCardError is returned when polling a reader with no card present.
// This is a normal condition for NFC readers and should not be treated as a device error.
type noCardError struct {
	ReaderName string
}

func (e *noCardError) Error() string {
	return "no card present in reader " + e.ReaderName
}

// NewNoCardError creates a no-card error for the named reader.
func NewNoCardError(reader string) error {
	return &noCardError{ReaderName: reader}
}

// IsNoCardError checks if an error indicates no card is present in the reader.
func IsNoCardError(err error) bool {
	if err == nil {
		return false
	}
	var noCard *noCardError
	if errors.As(err, &noCard) {
		return true
	}
	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "no card present") ||
		strings.Contains(errLower, "no smart card") ||
		strings.Contains(errLower, "card is not present")
}

// Error checking helpers. Backends wrap the sentinels above where they can;
// libnfc only reports strings, so those are matched as well.

func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Operation timed out") ||
		strings.Contains(errStr, "operation timed out") ||
		strings.Contains(errStr, "timeout")
}

func IsDeviceClosedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeviceClosed) {
		return true
	}
	return strings.Contains(err.Error(), "device closed")
}

func IsIOError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrIO) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "input / output error") ||
		strings.Contains(errStr, "Input/output error") ||
		strings.Contains(errStr, "i/o error") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "Operation not permitted")
}

func IsDeviceConfigError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeviceConfig) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "device not configured") ||
		strings.Contains(errStr, "Device not configured") ||
		strings.Contains(errStr, "Unable to write to USB") ||
		strings.Contains(errStr, "RDR_to_PC_DataBlock")
}

// IsACR122Error reports errors the ACR122 raises when it needs to rest
// before it can be reopened.
func IsACR122Error(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrACR122Specific) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Operation not permitted") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "RDR_to_PC_DataBlock")
}
