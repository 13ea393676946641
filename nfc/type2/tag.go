// Package type2 implements NFC Forum Type 2 tags (MIFARE Ultralight and
// NTAG21x) on top of a page transport.
//
// The tag memory is read and written in 4-byte pages. Page 2 carries the
// static lock bytes, page 3 the capability container and the NDEF data area
// starts at page 4, framed as TLV blocks.
package type2

import (
	"errors"
	"fmt"

	"github.com/dotside-studios/davi-ndef-agent/nfc"
	"go.uber.org/zap"
)

const (
	pageSize      = 4
	pageLock      = 2
	pageCC        = 3
	firstDataPage = 4

	ccMagic        = 0xE1
	ccVersion      = 0x10 // Mapping version 1.0
	accessOpen     = 0x00
	accessReadOnly = 0x0F
)

// PageIO is the transport a Tag runs over. Backends implement it with
// libfreefare or reader pseudo-APDUs.
type PageIO interface {
	Open() error
	Close() error
	ReadPage(page byte) ([4]byte, error)
	WritePage(page byte, data [4]byte) error
}

// Tag implements nfc.Tag for Type 2 tags.
//
// Connect reads the capability container and the NDEF message; the other
// accessors answer from that snapshot. Model is only used to lay out the
// capability container when formatting a blank tag and as a fallback when
// the container size does not match a known model.
type Tag struct {
	io    PageIO
	uid   string
	model Model

	connected bool
	cc        [4]byte
	msg       *nfc.NDEFMessage
	msgErr    error
}

var _ nfc.Tag = (*Tag)(nil)

// New creates a Tag over io.
func New(io PageIO, uid string, model Model) *Tag {
	return &Tag{io: io, uid: uid, model: model}
}

func (t *Tag) UID() string {
	return t.uid
}

func (t *Tag) Type() string {
	if t.formatted() {
		if m, ok := ModelForCC(t.cc[2]); ok {
			return m.Name
		}
	}
	return t.model.Name
}

// Connect opens the transport and snapshots the tag's NDEF state.
func (t *Tag) Connect() error {
	if t.connected {
		return fmt.Errorf("type2: tag %s already connected", t.uid)
	}
	if err := t.io.Open(); err != nil {
		return err
	}

	cc, err := t.io.ReadPage(pageCC)
	if err != nil {
		t.io.Close()
		return fmt.Errorf("type2: read capability container: %w", err)
	}
	t.cc = cc
	t.msg, t.msgErr = nil, nil
	t.connected = true

	if !t.formatted() {
		return nil
	}

	data, err := t.readNDEF()
	switch {
	case nfc.GetErrorCode(err) == nfc.ErrCodeInvalidNdefMessage:
		// A broken TLV area is a message problem; the tag stays open so
		// it can be rewritten.
		t.msgErr = err
	case err != nil:
		t.connected = false
		t.io.Close()
		return err
	case len(data) > 0:
		// An empty NDEF TLV is how a formatted blank tag looks.
		t.msg, t.msgErr = nfc.DecodeNDEF(data)
	}
	return nil
}

func (t *Tag) Close() error {
	if !t.connected {
		return fmt.Errorf("type2: tag %s not connected", t.uid)
	}
	t.connected = false
	return t.io.Close()
}

func (t *Tag) IsFormatted() (bool, error) {
	if !t.connected {
		return false, fmt.Errorf("type2: tag %s not connected", t.uid)
	}
	return t.formatted(), nil
}

// IsWritable checks the capability container write access and the static
// lock bytes.
func (t *Tag) IsWritable() (bool, error) {
	if !t.connected {
		return false, fmt.Errorf("type2: tag %s not connected", t.uid)
	}
	if t.cc[3]&0x0F != accessOpen {
		return false, nil
	}

	lock, err := t.io.ReadPage(pageLock)
	if err != nil {
		return false, fmt.Errorf("type2: read lock bytes: %w", err)
	}
	// Lock byte 0 bits 4-7 and lock byte 1 lock data pages 4-15.
	if lock[2]&0xF0 != 0 || lock[3] != 0 {
		return false, nil
	}
	return true, nil
}

// MaxSize returns the largest NDEF message the data area can hold once TLV
// framing is accounted for.
func (t *Tag) MaxSize() int {
	return maxMessageSize(t.dataSize())
}

func (t *Tag) CachedMessage() (*nfc.NDEFMessage, error) {
	if !t.connected {
		return nil, fmt.Errorf("type2: tag %s not connected", t.uid)
	}
	return t.msg, t.msgErr
}

// Format writes a capability container for the configured model, then msg.
func (t *Tag) Format(msg *nfc.NDEFMessage) error {
	if !t.connected {
		return fmt.Errorf("type2: tag %s not connected", t.uid)
	}
	if t.formatted() {
		return fmt.Errorf("type2: tag %s already formatted", t.uid)
	}
	if t.model.DataSize == 0 {
		return nfc.NewNotSupportedError("Format")
	}

	tlv, err := encodeTLV(msg, t.model.DataSize)
	if err != nil {
		return err
	}

	cc := [4]byte{ccMagic, ccVersion, t.model.CCSize, accessOpen}
	if err := t.io.WritePage(pageCC, cc); err != nil {
		return fmt.Errorf("type2: write capability container: %w", err)
	}
	t.cc = cc

	if err := t.writeData(tlv); err != nil {
		return err
	}
	t.msg, t.msgErr = msg, nil
	nfc.Logger().Debug("formatted type 2 tag", zap.String("uid", t.uid), zap.String("model", t.model.Name))
	return nil
}

// WriteMessage replaces the NDEF message in the data area.
func (t *Tag) WriteMessage(msg *nfc.NDEFMessage) error {
	if !t.connected {
		return fmt.Errorf("type2: tag %s not connected", t.uid)
	}
	if !t.formatted() {
		return fmt.Errorf("type2: tag %s not formatted", t.uid)
	}

	tlv, err := encodeTLV(msg, t.dataSize())
	if err != nil {
		return err
	}
	if err := t.writeData(tlv); err != nil {
		return err
	}
	t.msg, t.msgErr = msg, nil
	return nil
}

// MakeReadOnly sets the capability container to read-only, then the
// dynamic and static lock bits. The static lock bits also freeze the
// capability container, so they go last.
func (t *Tag) MakeReadOnly() error {
	if !t.connected {
		return fmt.Errorf("type2: tag %s not connected", t.uid)
	}
	if !t.formatted() {
		return fmt.Errorf("type2: tag %s not formatted", t.uid)
	}

	cc := t.cc
	cc[3] = accessReadOnly
	if err := t.io.WritePage(pageCC, cc); err != nil {
		return fmt.Errorf("type2: write capability container: %w", err)
	}
	t.cc = cc

	if page := t.lockModel().DynLockPage; page != 0 {
		if err := t.io.WritePage(page, [4]byte{0xFF, 0xFF, 0xFF, 0x00}); err != nil {
			return fmt.Errorf("type2: write dynamic lock bytes: %w", err)
		}
	}

	lock, err := t.io.ReadPage(pageLock)
	if err != nil {
		return fmt.Errorf("type2: read lock bytes: %w", err)
	}
	// Bytes 0-1 hold the UID check byte and internal data; only the lock
	// bytes are written, a WRITE to page 2 ORs them in.
	lock[2], lock[3] = 0xFF, 0xFF
	if err := t.io.WritePage(pageLock, lock); err != nil {
		return fmt.Errorf("type2: write static lock bytes: %w", err)
	}

	nfc.Logger().Info("type 2 tag locked", zap.String("uid", t.uid))
	return nil
}

func (t *Tag) formatted() bool {
	return t.cc[0] == ccMagic
}

func (t *Tag) dataSize() int {
	if t.formatted() {
		return int(t.cc[2]) * 8
	}
	return t.model.DataSize
}

// lockModel picks the model whose dynamic lock page applies to this tag.
func (t *Tag) lockModel() Model {
	if m, ok := ModelForCC(t.cc[2]); ok {
		return m
	}
	return t.model
}

// readNDEF reads data pages until the NDEF TLV is complete or absent.
func (t *Tag) readNDEF() ([]byte, error) {
	size := t.dataSize()
	pages := (size + pageSize - 1) / pageSize
	buf := make([]byte, 0, pages*pageSize)

	var walkErr error
	for i := 0; i < pages; i++ {
		page, err := t.io.ReadPage(byte(firstDataPage + i))
		if err != nil {
			return nil, fmt.Errorf("type2: read page %d: %w", firstDataPage+i, err)
		}
		buf = append(buf, page[:]...)

		var value []byte
		var found bool
		value, found, walkErr = nfc.TLVFindNDEF(buf)
		if walkErr == nil {
			if !found {
				return nil, nil
			}
			return value, nil
		}
	}
	if errors.Is(walkErr, nfc.ErrTLVCut) {
		return nil, nfc.WrapError(nfc.ErrCodeInvalidNdefMessage, "ReadNDEF",
			fmt.Sprintf("TLV runs past the %d byte data area", size), walkErr)
	}
	// Data area without a terminator, only null TLVs.
	return nil, nil
}

func (t *Tag) writeData(tlv []byte) error {
	for offset := 0; offset < len(tlv); offset += pageSize {
		var page [4]byte
		copy(page[:], tlv[offset:])
		p := byte(firstDataPage + offset/pageSize)
		if err := t.io.WritePage(p, page); err != nil {
			return fmt.Errorf("type2: write page %d: %w", p, err)
		}
	}
	return nil
}

func encodeTLV(msg *nfc.NDEFMessage, dataSize int) ([]byte, error) {
	raw, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	if limit := maxMessageSize(dataSize); len(raw) > limit {
		return nil, nfc.Errorf(nfc.ErrCodeCapacityExceeded, "WriteMessage",
			"message is %d bytes, tag holds %d", len(raw), limit)
	}
	return nfc.TLVEncode(raw, nfc.TLVNDEF)
}

// maxMessageSize is the largest value that fits in an NDEF TLV followed by
// a terminator inside dataSize bytes.
func maxMessageSize(dataSize int) int {
	if n := dataSize - nfc.TLVOverhead(0); n < 0xFF {
		if n < 0 {
			return 0
		}
		return n
	}
	return dataSize - nfc.TLVOverhead(0xFF)
}
