package pcsc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	ndef "github.com/dotside-studios/davi-ndef-agent/nfc"
	"github.com/dotside-studios/davi-ndef-agent/nfc/type2"
	"github.com/ebfe/scard"
	"go.uber.org/zap"
)

// device implements nfc.Device for one PC/SC reader.
type device struct {
	ctx    *scard.Context
	reader string
	model  type2.Model

	mu     sync.Mutex
	closed bool

	// The card identified for the current insertion. The reader's event
	// counter changes on every insertion, so it keys the cache.
	eventCount  uint16
	identified  bool
	current     ndef.Tag
	unsupported bool
}

func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.current = nil
	d.identified = false
	return nil
}

// InitiatorInit checks that the reader is still attached.
func (d *device) InitiatorInit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ndef.ErrDeviceClosed
	}

	readers, err := d.ctx.ListReaders()
	if err != nil {
		return fmt.Errorf("%w: %v", ndef.ErrIO, err)
	}
	for _, r := range readers {
		if r == d.reader {
			return nil
		}
	}
	return fmt.Errorf("%w: reader %s is gone", ndef.ErrDeviceConfig, d.reader)
}

func (d *device) String() string {
	return d.reader
}

func (d *device) Connection() string {
	return "pcsc:" + d.reader
}

// GetTags reports the card on the reader, if it is an Ultralight-family
// card. A reader without a card yields a no-card error.
func (d *device) GetTags() ([]ndef.Tag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ndef.ErrDeviceClosed
	}

	states := []scard.ReaderState{{Reader: d.reader, CurrentState: scard.StateUnaware}}
	if err := d.ctx.GetStatusChange(states, 0); err != nil {
		// A zero timeout may report a timeout while still filling in the
		// current state.
		if !strings.Contains(strings.ToLower(err.Error()), "timeout") {
			return nil, fmt.Errorf("%w: %v", ndef.ErrIO, err)
		}
	}

	state := states[0].EventState
	if state&scard.StatePresent == 0 {
		d.identified = false
		d.current = nil
		return nil, ndef.NewNoCardError(d.reader)
	}

	count := uint16(state >> 16)
	if d.identified && count == d.eventCount {
		if d.current == nil {
			return nil, nil
		}
		return []ndef.Tag{d.current}, nil
	}

	d.eventCount = count
	d.identified = true
	d.current = nil

	atr := states[0].Atr
	if !type2.IsUltralightATR(atr) {
		ndef.Logger().Info("card on reader is not a Type 2 tag, ignoring",
			zap.String("reader", d.reader), zap.String("atr", strings.ToUpper(hex.EncodeToString(atr))))
		return nil, nil
	}

	tag, err := d.identify()
	if err != nil {
		// Retry on the next poll.
		d.identified = false
		if isCardRemovedPCSCError(err) {
			return nil, ndef.NewNoCardError(d.reader)
		}
		return nil, err
	}
	d.current = tag
	return []ndef.Tag{tag}, nil
}

// identify reads the UID and version in a short connection of its own.
// The card is reset afterwards, since cards that NAK GET_VERSION drop out
// of the selected state.
func (d *device) identify() (ndef.Tag, error) {
	card, err := d.ctx.Connect(d.reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", d.reader, err)
	}
	defer card.Disconnect(scard.ResetCard)

	data, err := transmit(card, GetUIDAPDU())
	if err != nil {
		return nil, fmt.Errorf("GET UID failed: %w", err)
	}
	uid := strings.ToUpper(hex.EncodeToString(data))

	model := d.model
	if version, err := transmit(card, GetVersionAPDU()); err == nil {
		if m, ok := type2.ModelFromVersion(version); ok {
			model = m
		}
	}

	return type2.New(&pageIO{ctx: d.ctx, reader: d.reader}, uid, model), nil
}

// pageIO implements type2.PageIO with PC/SC read/update binary commands.
type pageIO struct {
	ctx    *scard.Context
	reader string
	card   *scard.Card
}

func (p *pageIO) Open() error {
	if p.card != nil {
		return fmt.Errorf("card already connected")
	}
	card, err := p.ctx.Connect(p.reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", p.reader, err)
	}
	p.card = card
	return nil
}

func (p *pageIO) Close() error {
	if p.card == nil {
		return fmt.Errorf("card not connected")
	}
	err := p.card.Disconnect(scard.LeaveCard)
	p.card = nil
	return err
}

func (p *pageIO) ReadPage(page byte) ([4]byte, error) {
	var out [4]byte
	if p.card == nil {
		return out, fmt.Errorf("card not connected")
	}
	data, err := transmit(p.card, ReadPageAPDU(page))
	if err != nil {
		return out, fmt.Errorf("read page %d: %w", page, err)
	}
	// Some readers return the four pages a native READ yields.
	if len(data) < 4 {
		return out, fmt.Errorf("read page %d: short response (%d bytes)", page, len(data))
	}
	copy(out[:], data)
	return out, nil
}

func (p *pageIO) WritePage(page byte, data [4]byte) error {
	if p.card == nil {
		return fmt.Errorf("card not connected")
	}
	if _, err := transmit(p.card, WritePageAPDU(page, data)); err != nil {
		return fmt.Errorf("write page %d: %w", page, err)
	}
	return nil
}

func transmit(card *scard.Card, cmd []byte) ([]byte, error) {
	resp, err := card.Transmit(cmd)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseAPDUResponse(resp)
	if err != nil {
		return nil, err
	}
	if err := parsed.Error(); err != nil {
		return nil, err
	}
	return parsed.Data, nil
}

// isCardRemovedPCSCError checks if a PC/SC error indicates the card was removed.
func isCardRemovedPCSCError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, scard.ErrRemovedCard) ||
		errors.Is(err, scard.ErrResetCard) ||
		errors.Is(err, scard.ErrNoSmartcard) ||
		errors.Is(err, scard.ErrUnpoweredCard) {
		return true
	}
	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "removed") ||
		strings.Contains(errLower, "no smart card") ||
		strings.Contains(errLower, "unpowered")
}
