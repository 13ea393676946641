package nfc

import (
	"fmt"
	"sync"
	"time"
)

// SimDevice is an in-memory Device that presents tags on demand.
//
// It backs the "sim" backend and the watcher tests: tags placed with
// Present stay in the field until Remove is called, Tap presents a tag for
// a fixed hold time.
//
// Example:
//
//	dev := nfc.NewSimDevice("sim:0")
//	dev.Tap(nfc.NewMockTag("04A1B2C3"), time.Second)
type SimDevice struct {
	// DeviceName is the simulated device name returned by String()
	DeviceName string

	// IsOpen tracks whether the device is currently open
	IsOpen bool

	// InitError, if set, will be returned by InitiatorInit()
	InitError error

	// GetTagsError, if set, will be returned by GetTags()
	GetTagsError error

	tags []Tag
	mu   sync.Mutex
}

// NewSimDevice creates an open SimDevice with no tags in the field.
func NewSimDevice(name string) *SimDevice {
	return &SimDevice{
		DeviceName: name,
		IsOpen:     true,
	}
}

// Close simulates closing the device. Tags in the field stay there.
func (d *SimDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.IsOpen {
		return fmt.Errorf("device already closed")
	}
	d.IsOpen = false
	return nil
}

// InitiatorInit simulates device initialization.
func (d *SimDevice) InitiatorInit() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.IsOpen {
		return fmt.Errorf("device not open")
	}
	return d.InitError
}

// String returns the simulated device name.
func (d *SimDevice) String() string {
	return d.DeviceName
}

// Connection returns the simulated connection string.
func (d *SimDevice) Connection() string {
	return "sim:" + d.DeviceName
}

// GetTags returns the tags currently in the field.
func (d *SimDevice) GetTags() ([]Tag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.IsOpen {
		return nil, ErrDeviceClosed
	}
	if d.GetTagsError != nil {
		return nil, d.GetTagsError
	}

	tagsCopy := make([]Tag, len(d.tags))
	copy(tagsCopy, d.tags)
	return tagsCopy, nil
}

// Present places tag in the field, replacing any tag with the same UID.
func (d *SimDevice) Present(tag Tag) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, t := range d.tags {
		if t.UID() == tag.UID() {
			d.tags[i] = tag
			return
		}
	}
	d.tags = append(d.tags, tag)
}

// Remove takes the tag with the given UID out of the field.
func (d *SimDevice) Remove(uid string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, t := range d.tags {
		if t.UID() == uid {
			d.tags = append(d.tags[:i], d.tags[i+1:]...)
			return
		}
	}
}

// Tap presents tag for hold, then removes it.
func (d *SimDevice) Tap(tag Tag, hold time.Duration) {
	d.Present(tag)
	time.AfterFunc(hold, func() { d.Remove(tag.UID()) })
}

// SimManager is a Manager exposing a single SimDevice.
type SimManager struct {
	Device *SimDevice
}

// NewSimManager creates a SimManager for dev.
func NewSimManager(dev *SimDevice) *SimManager {
	return &SimManager{Device: dev}
}

// OpenDevice reopens the simulated device. deviceStr must be empty or match
// the device name.
func (m *SimManager) OpenDevice(deviceStr string) (Device, error) {
	if deviceStr != "" && deviceStr != m.Device.DeviceName {
		return nil, fmt.Errorf("unknown simulated device %q", deviceStr)
	}
	m.Device.mu.Lock()
	m.Device.IsOpen = true
	m.Device.mu.Unlock()
	return m.Device, nil
}

// ListDevices returns the simulated device name.
func (m *SimManager) ListDevices() ([]string, error) {
	return []string{m.Device.DeviceName}, nil
}
