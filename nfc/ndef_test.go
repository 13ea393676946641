package nfc

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewTextMessage_Encode(t *testing.T) {
	msg, err := NewTextMessage("en", "Hello")
	if err != nil {
		t.Fatalf("NewTextMessage() error = %v", err)
	}

	encoded, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// MB|ME|SR|TNF=1, type length 1, payload length 8, "T", payload
	expected := []byte{0xD1, 0x01, 0x08, 'T', 0x02, 'e', 'n', 'H', 'e', 'l', 'l', 'o'}
	if !bytes.Equal(encoded, expected) {
		t.Errorf("Encode() = % X, want % X", encoded, expected)
	}
	if msg.EncodedLen() != len(encoded) {
		t.Errorf("EncodedLen() = %d, want %d", msg.EncodedLen(), len(encoded))
	}
}

func TestNDEFMessage_ShortAndLongRecords(t *testing.T) {
	tests := []struct {
		name      string
		textLen   int
		wantShort bool
	}{
		{name: "short record", textLen: 100, wantShort: true},
		{name: "largest short record", textLen: 0xFF - 3, wantShort: true},
		{name: "smallest long record", textLen: 0xFF - 2, wantShort: false},
		{name: "long record", textLen: 600, wantShort: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("a", tt.textLen)
			msg, err := NewTextMessage("en", text)
			if err != nil {
				t.Fatalf("NewTextMessage() error = %v", err)
			}
			encoded, err := msg.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			if isShort := encoded[0]&0x10 != 0; isShort != tt.wantShort {
				t.Errorf("short record flag = %v, want %v", isShort, tt.wantShort)
			}
			if msg.EncodedLen() != len(encoded) {
				t.Errorf("EncodedLen() = %d, want %d", msg.EncodedLen(), len(encoded))
			}

			decoded, err := DecodeNDEF(encoded)
			if err != nil {
				t.Fatalf("DecodeNDEF() error = %v", err)
			}
			rec, ok := decoded.First()
			if !ok {
				t.Fatal("decoded message has no records")
			}
			got, err := rec.Text()
			if err != nil {
				t.Fatalf("Text() error = %v", err)
			}
			if got.Text != text {
				t.Errorf("decoded text length = %d, want %d", len(got.Text), len(text))
			}
		})
	}
}

func TestNDEFMessage_MultipleRecords(t *testing.T) {
	records := []NDEFRecord{
		{TNF: TNFWellKnown, Type: RTDText, Payload: []byte{0x02, 'e', 'n', 'o', 'n', 'e'}},
		{TNF: TNFMIME, Type: []byte("text/plain"), ID: []byte("id1"), Payload: []byte("two")},
		{TNF: TNFExternal, Type: []byte("example.com:t"), Payload: []byte{}},
	}
	msg := NewNDEFMessage(records...)

	encoded, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if encoded[0]&0x80 == 0 {
		t.Error("first record is missing the MB flag")
	}
	if encoded[0]&0x40 != 0 {
		t.Error("first record has the ME flag set")
	}

	decoded, err := DecodeNDEF(encoded)
	if err != nil {
		t.Fatalf("DecodeNDEF() error = %v", err)
	}
	if diff := cmp.Diff(records, decoded.Records()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeNDEF_StopsAtMessageEnd(t *testing.T) {
	data := []byte{0xD1, 0x01, 0x03, 'T', 0x00, 'h', 'i', 0x00, 0x00, 0xFE}
	msg, err := DecodeNDEF(data)
	if err != nil {
		t.Fatalf("DecodeNDEF() error = %v", err)
	}
	if n := len(msg.Records()); n != 1 {
		t.Errorf("got %d records, want 1", n)
	}
}

func TestDecodeNDEF_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "header only", data: []byte{0xD1}},
		{name: "missing payload length", data: []byte{0xD1, 0x01}},
		{name: "payload exceeds data", data: []byte{0xD1, 0x01, 0x10, 'T', 0x02}},
		{name: "long length truncated", data: []byte{0xC1, 0x01, 0x00, 0x00}},
		{name: "chunked record", data: []byte{0xB1, 0x01, 0x01, 'T', 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeNDEF(tt.data)
			if !errors.Is(err, ErrInvalidNdefMessage) {
				t.Errorf("DecodeNDEF() error = %v, want InvalidNdefMessage", err)
			}
		})
	}
}

func TestNDEFMessage_EncodeEmpty(t *testing.T) {
	_, err := NewNDEFMessage().Encode()
	if !errors.Is(err, ErrInvalidNdefMessage) {
		t.Errorf("Encode() error = %v, want InvalidNdefMessage", err)
	}

	var nilMsg *NDEFMessage
	if _, ok := nilMsg.First(); ok {
		t.Error("First() on nil message reported a record")
	}
	if nilMsg.Records() != nil {
		t.Error("Records() on nil message should be nil")
	}
}

func TestNDEFRecord_IsTextRecord(t *testing.T) {
	tests := []struct {
		name   string
		record NDEFRecord
		want   bool
	}{
		{name: "text", record: NDEFRecord{TNF: TNFWellKnown, Type: []byte("T")}, want: true},
		{name: "uri", record: NDEFRecord{TNF: TNFWellKnown, Type: []byte("U")}, want: false},
		{name: "mime T", record: NDEFRecord{TNF: TNFMIME, Type: []byte("T")}, want: false},
		{name: "empty", record: NDEFRecord{TNF: TNFEmpty}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.IsTextRecord(); got != tt.want {
				t.Errorf("IsTextRecord() = %v, want %v", got, tt.want)
			}
		})
	}
}
