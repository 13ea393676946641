// Package libnfc drives USB readers through libnfc and libfreefare.
//
// Only the MIFARE Ultralight family (which libfreefare also reports for
// NTAG21x) is exposed; every tag is served as a type2.Tag over the
// libfreefare page API.
package libnfc

import (
	"fmt"
	"time"

	"github.com/clausecker/nfc/v2"
	ndef "github.com/dotside-studios/davi-ndef-agent/nfc"
	"github.com/dotside-studios/davi-ndef-agent/nfc/type2"
)

// Manager implements nfc.Manager using libnfc.
type Manager struct {
	model type2.Model
}

var _ ndef.Manager = (*Manager)(nil)

// NewManager creates a Manager. model is assumed for tags that do not
// answer GET_VERSION and are not yet formatted.
func NewManager(model type2.Model) *Manager {
	return &Manager{model: model}
}

func (m *Manager) OpenDevice(deviceStr string) (ndef.Device, error) {
	dev, err := nfc.Open(deviceStr)
	if err != nil {
		return nil, err
	}
	return &device{device: dev, model: m.model}, nil
}

func (m *Manager) ListDevices() ([]string, error) {
	var devices []string
	var err error
	for i := 0; i < ndef.DeviceEnumRetries; i++ {
		devices, err = nfc.ListDevices()
		if err == nil {
			return devices, nil
		}
		time.Sleep(time.Millisecond * 100)
	}
	return nil, fmt.Errorf("failed to list NFC devices after %d retries: %w", ndef.DeviceEnumRetries, err)
}
