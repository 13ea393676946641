// Package pcsc drives contactless readers through the PC/SC API.
//
// A Device is a reader, not a card: GetTags checks the reader state and,
// when an Ultralight-family card is present, returns a type2.Tag whose
// page IO runs over PC/SC pseudo-APDUs.
package pcsc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	ndef "github.com/dotside-studios/davi-ndef-agent/nfc"
	"github.com/dotside-studios/davi-ndef-agent/nfc/type2"
	"github.com/ebfe/scard"
)

// Manager implements nfc.Manager using PC/SC via ebfe/scard.
type Manager struct {
	model type2.Model

	ctx   *scard.Context
	ctxMu sync.Mutex
}

var _ ndef.Manager = (*Manager)(nil)

// NewManager creates a PC/SC manager. model is assumed for cards that do
// not answer GET_VERSION and are not yet formatted.
func NewManager(model type2.Model) *Manager {
	return &Manager{model: model}
}

// ensureContext returns a valid PC/SC context, re-establishing it if the
// old one went stale (pcscd restarts).
func (m *Manager) ensureContext() (*scard.Context, error) {
	m.ctxMu.Lock()
	defer m.ctxMu.Unlock()

	if m.ctx != nil {
		if _, err := m.ctx.ListReaders(); err == nil {
			return m.ctx, nil
		}
		m.ctx.Release()
		m.ctx = nil
	}

	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	m.ctx = ctx
	return ctx, nil
}

// OpenDevice opens the named reader, or the first contactless reader when
// deviceStr is empty.
func (m *Manager) OpenDevice(deviceStr string) (ndef.Device, error) {
	ctx, err := m.ensureContext()
	if err != nil {
		return nil, err
	}

	readerName := deviceStr
	if readerName == "" {
		readers, err := ctx.ListReaders()
		if err != nil {
			return nil, fmt.Errorf("failed to list readers: %w", err)
		}
		readers = filterContactlessReaders(readers)
		if len(readers) == 0 {
			return nil, fmt.Errorf("no PC/SC readers found")
		}
		readerName = readers[0]
	}

	return &device{ctx: ctx, reader: readerName, model: m.model}, nil
}

// ListDevices lists available PC/SC readers.
func (m *Manager) ListDevices() ([]string, error) {
	var lastErr error

	for i := 0; i < ndef.DeviceEnumRetries; i++ {
		ctx, err := m.ensureContext()
		if err != nil {
			lastErr = err
			time.Sleep(time.Millisecond * 100)
			continue
		}

		readers, err := ctx.ListReaders()
		if err != nil {
			lastErr = err
			time.Sleep(time.Millisecond * 100)
			continue
		}
		return filterContactlessReaders(readers), nil
	}

	return nil, fmt.Errorf("failed to list PC/SC readers after %d retries: %w", ndef.DeviceEnumRetries, lastErr)
}

// Release releases the PC/SC context.
func (m *Manager) Release() error {
	m.ctxMu.Lock()
	defer m.ctxMu.Unlock()

	if m.ctx != nil {
		err := m.ctx.Release()
		m.ctx = nil
		return err
	}
	return nil
}

// readerContainsPattern checks if reader name contains common NFC reader patterns
func readerContainsPattern(name string) bool {
	patterns := []string{
		"ACR", "ACS", "NFC", "PICC", "Contactless",
		"SCL", "HID", "Identiv", "Dual",
	}
	upperName := strings.ToUpper(name)
	for _, p := range patterns {
		if strings.Contains(upperName, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

// filterContactlessReaders drops SAM slots and prefers readers that look
// contactless. If none do, every non-SAM reader is kept.
func filterContactlessReaders(readers []string) []string {
	var contactless, rest []string
	for _, r := range readers {
		if strings.Contains(strings.ToUpper(r), "SAM") {
			continue
		}
		if readerContainsPattern(r) {
			contactless = append(contactless, r)
		} else {
			rest = append(rest, r)
		}
	}
	if len(contactless) > 0 {
		return contactless
	}
	return rest
}
