package nfc

import (
	"encoding/binary"
	"fmt"
)

// Type Name Format values.
const (
	TNFEmpty     byte = 0x00
	TNFWellKnown byte = 0x01
	TNFMIME      byte = 0x02
	TNFURI       byte = 0x03
	TNFExternal  byte = 0x04
	TNFUnknown   byte = 0x05
	TNFUnchanged byte = 0x06
)

// Record header flags.
const (
	flagMB  = 0x80 // Message Begin
	flagME  = 0x40 // Message End
	flagCF  = 0x20 // Chunk Flag
	flagSR  = 0x10 // Short Record
	flagIL  = 0x08 // ID Length present
	maskTNF = 0x07
)

// RTDText is the Well-Known record type of a Text record.
var RTDText = []byte("T")

// NDEFRecord represents a single NDEF record within a message.
type NDEFRecord struct {
	TNF     byte   // Type Name Format (0x00-0x07)
	Type    []byte // Record type (e.g., "T" for text)
	ID      []byte // Optional record ID
	Payload []byte // Record payload data
}

// IsTextRecord returns true if this is a Well-Known Text record.
func (r NDEFRecord) IsTextRecord() bool {
	return r.TNF == TNFWellKnown && len(r.Type) == 1 && r.Type[0] == RTDText[0]
}

// Text decodes the record payload as a Text record.
func (r NDEFRecord) Text() (TextRecord, error) {
	return DecodeTextRecord(r.Payload)
}

// NDEFMessage is an ordered list of NDEF records.
type NDEFMessage struct {
	records []NDEFRecord
}

// NewNDEFMessage creates a message from the given records.
func NewNDEFMessage(records ...NDEFRecord) *NDEFMessage {
	return &NDEFMessage{records: records}
}

// NewTextMessage creates a single-record message holding one Text record.
func NewTextMessage(language, text string) (*NDEFMessage, error) {
	payload, err := EncodeTextRecord(language, text)
	if err != nil {
		return nil, err
	}
	return NewNDEFMessage(NDEFRecord{
		TNF:     TNFWellKnown,
		Type:    RTDText,
		Payload: payload,
	}), nil
}

// Records returns the records in this message.
func (m *NDEFMessage) Records() []NDEFRecord {
	if m == nil {
		return nil
	}
	return m.records
}

// First returns record 0, if any.
func (m *NDEFMessage) First() (NDEFRecord, bool) {
	if m == nil || len(m.records) == 0 {
		return NDEFRecord{}, false
	}
	return m.records[0], true
}

// Encode converts the NDEF message to bytes.
func (m *NDEFMessage) Encode() ([]byte, error) {
	if m == nil || len(m.records) == 0 {
		return nil, Errorf(ErrCodeInvalidNdefMessage, "Encode", "cannot encode empty NDEF message")
	}

	var result []byte
	for i, record := range m.records {
		if len(record.Type) > 0xFF || len(record.ID) > 0xFF {
			return nil, Errorf(ErrCodeInvalidNdefMessage, "Encode",
				"record %d: type or ID longer than 255 bytes", i)
		}
		result = appendRecord(result, record, i == 0, i == len(m.records)-1)
	}
	return result, nil
}

// EncodedLen returns the size of the encoded message without allocating it.
func (m *NDEFMessage) EncodedLen() int {
	n := 0
	for _, r := range m.Records() {
		n += 2 + len(r.Type) + len(r.ID) + len(r.Payload)
		if len(r.Payload) <= 0xFF {
			n++
		} else {
			n += 4
		}
		if len(r.ID) > 0 {
			n++
		}
	}
	return n
}

func appendRecord(dst []byte, record NDEFRecord, first, last bool) []byte {
	payloadLen := len(record.Payload)
	isShortRecord := payloadLen <= 0xFF
	hasID := len(record.ID) > 0

	header := record.TNF & maskTNF
	if first {
		header |= flagMB
	}
	if last {
		header |= flagME
	}
	if isShortRecord {
		header |= flagSR
	}
	if hasID {
		header |= flagIL
	}

	dst = append(dst, header, byte(len(record.Type)))
	if isShortRecord {
		dst = append(dst, byte(payloadLen))
	} else {
		dst = binary.BigEndian.AppendUint32(dst, uint32(payloadLen))
	}
	if hasID {
		dst = append(dst, byte(len(record.ID)))
	}
	dst = append(dst, record.Type...)
	dst = append(dst, record.ID...)
	dst = append(dst, record.Payload...)
	return dst
}

// DecodeNDEF parses raw bytes into an NDEFMessage.
// Parsing stops at the first record carrying the ME flag.
func DecodeNDEF(data []byte) (*NDEFMessage, error) {
	if len(data) == 0 {
		return nil, Errorf(ErrCodeInvalidNdefMessage, "DecodeNDEF", "empty NDEF message")
	}

	var records []NDEFRecord
	offset := 0

	for offset < len(data) {
		record, next, last, err := parseRecord(data, offset)
		if err != nil {
			return nil, WrapError(ErrCodeInvalidNdefMessage, "DecodeNDEF", "invalid NDEF message", err)
		}
		records = append(records, record)
		offset = next
		if last {
			break
		}
	}

	return &NDEFMessage{records: records}, nil
}

func parseRecord(data []byte, offset int) (NDEFRecord, int, bool, error) {
	header := data[offset]
	pos := offset + 1

	if header&flagCF != 0 {
		return NDEFRecord{}, 0, false, fmt.Errorf("chunked record at offset %d not supported", offset)
	}

	if pos+1 > len(data) {
		return NDEFRecord{}, 0, false, fmt.Errorf("truncated type length at offset %d", pos)
	}
	typeLength := int(data[pos])
	pos++

	var payloadLength int
	if header&flagSR != 0 {
		if pos+1 > len(data) {
			return NDEFRecord{}, 0, false, fmt.Errorf("truncated short record payload length at offset %d", pos)
		}
		payloadLength = int(data[pos])
		pos++
	} else {
		if pos+4 > len(data) {
			return NDEFRecord{}, 0, false, fmt.Errorf("truncated payload length at offset %d", pos)
		}
		payloadLength = int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
	}

	var idLength int
	if header&flagIL != 0 {
		if pos+1 > len(data) {
			return NDEFRecord{}, 0, false, fmt.Errorf("truncated ID length at offset %d", pos)
		}
		idLength = int(data[pos])
		pos++
	}

	if payloadLength < 0 || pos+typeLength+idLength+payloadLength > len(data) {
		return NDEFRecord{}, 0, false, fmt.Errorf("record at offset %d exceeds message (%d bytes)", offset, len(data))
	}

	record := NDEFRecord{TNF: header & maskTNF}
	if typeLength > 0 {
		record.Type = append([]byte(nil), data[pos:pos+typeLength]...)
	}
	pos += typeLength
	if idLength > 0 {
		record.ID = append([]byte(nil), data[pos:pos+idLength]...)
	}
	pos += idLength
	record.Payload = append([]byte{}, data[pos:pos+payloadLength]...)
	pos += payloadLength

	return record, pos, header&flagME != 0, nil
}
