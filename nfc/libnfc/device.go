package libnfc

import (
	"fmt"

	"github.com/clausecker/freefare"
	"github.com/clausecker/nfc/v2"
	ndef "github.com/dotside-studios/davi-ndef-agent/nfc"
	"github.com/dotside-studios/davi-ndef-agent/nfc/type2"
	"go.uber.org/zap"
)

// device implements nfc.Device using an nfc.Device from libnfc.
type device struct {
	device nfc.Device
	model  type2.Model
}

func (d *device) Close() error {
	return d.device.Close()
}

func (d *device) InitiatorInit() error {
	return d.device.InitiatorInit()
}

func (d *device) String() string {
	return d.device.String()
}

func (d *device) Connection() string {
	return d.device.Connection()
}

// GetTags lists the Ultralight-family tags in the field. Other tag types
// are logged and skipped.
func (d *device) GetTags() ([]ndef.Tag, error) {
	ffTags, err := freefare.GetTags(d.device)
	if err != nil {
		return nil, fmt.Errorf("freefare.GetTags: %w", err)
	}

	var tags []ndef.Tag
	for _, ffTag := range ffTags {
		t, ok := ffTag.(freefare.UltralightTag)
		if !ok {
			ndef.Logger().Debug("skipping unsupported tag",
				zap.String("uid", ffTag.UID()), zap.String("type", fmt.Sprintf("%T", ffTag)))
			continue
		}
		model := d.detectModel(t)
		tags = append(tags, type2.New(&pageIO{tag: t}, t.UID(), model))
	}
	return tags, nil
}

// detectModel asks the tag for its version in a connection of its own, as
// plain Ultralight tags answer GET_VERSION with a NAK and drop out of the
// selected state.
func (d *device) detectModel(t freefare.UltralightTag) type2.Model {
	if t.Type() == freefare.UltralightC {
		return d.model
	}
	if err := t.Connect(); err != nil {
		return d.model
	}
	defer t.Disconnect()

	var rx [8]byte
	n, err := d.device.InitiatorTransceiveBytes([]byte{type2.GetVersion}, rx[:], 0)
	if err != nil {
		return d.model
	}
	if m, ok := type2.ModelFromVersion(rx[:n]); ok {
		return m
	}
	return d.model
}

// pageIO adapts a libfreefare Ultralight tag to type2.PageIO.
type pageIO struct {
	tag freefare.UltralightTag
}

func (p *pageIO) Open() error {
	return p.tag.Connect()
}

func (p *pageIO) Close() error {
	return p.tag.Disconnect()
}

func (p *pageIO) ReadPage(page byte) ([4]byte, error) {
	return p.tag.ReadPage(page)
}

func (p *pageIO) WritePage(page byte, data [4]byte) error {
	return p.tag.WritePage(page, data)
}
