package type2

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dotside-studios/davi-ndef-agent/nfc"
	"github.com/google/go-cmp/cmp"
)

func writeText(t *testing.T, tag nfc.Tag, req nfc.WriteRequest) nfc.WriteResult {
	t.Helper()
	result, err := nfc.WriteText(context.Background(), tag, req)
	if err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	return result
}

func readText(t *testing.T, tag nfc.Tag) nfc.TextRecord {
	t.Helper()
	rec, err := nfc.ReadText(context.Background(), tag)
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	return rec
}

func TestTag_FormatBlank(t *testing.T) {
	mem := NewMemoryPages(NTAG213, false)
	tag := New(mem, "04112233445566", NTAG213)

	result := writeText(t, tag, nfc.WriteRequest{Text: "Hello", Language: "en"})
	if !result.Formatted || !result.Written {
		t.Errorf("result = %+v, want formatted and written", result)
	}

	if got := mem.Page(pageCC); got != [4]byte{0xE1, 0x10, 0x12, 0x00} {
		t.Errorf("capability container = % X", got)
	}
	// NDEF TLV: 03 0C, then D1 01 08 'T' 02 'e' 'n' "Hello", then FE.
	want := []byte{0x03, 0x0C, 0xD1, 0x01, 0x08, 'T', 0x02, 'e', 'n', 'H', 'e', 'l', 'l', 'o', 0xFE}
	var got []byte
	for p := byte(4); p < 8; p++ {
		page := mem.Page(p)
		got = append(got, page[:]...)
	}
	if diff := cmp.Diff(want, got[:len(want)]); diff != "" {
		t.Errorf("data area mismatch (-want +got):\n%s", diff)
	}

	if rec := readText(t, tag); rec.Text != "Hello" || rec.Language != "en" {
		t.Errorf("read back %+v", rec)
	}
	if tag.Type() != "NTAG213" {
		t.Errorf("Type() = %q, want NTAG213", tag.Type())
	}
}

func TestTag_FactoryFormattedIsEmpty(t *testing.T) {
	tag := New(NewMemoryPages(NTAG215, true), "04AA", NTAG215)

	_, err := nfc.ReadText(context.Background(), tag)
	if !errors.Is(err, nfc.ErrNoNdefMessage) {
		t.Fatalf("ReadText() error = %v, want NoNdefMessage", err)
	}

	result := writeText(t, tag, nfc.WriteRequest{Text: "over the empty TLV"})
	if result.Formatted {
		t.Error("factory formatted tag was formatted again")
	}
	if rec := readText(t, tag); rec.Text != "over the empty TLV" {
		t.Errorf("read back %q", rec.Text)
	}
}

func TestTag_Overwrite(t *testing.T) {
	tag := New(NewMemoryPages(NTAG216, true), "04BB", NTAG216)

	writeText(t, tag, nfc.WriteRequest{Text: strings.Repeat("long text ", 40)})
	writeText(t, tag, nfc.WriteRequest{Text: "short"})

	if rec := readText(t, tag); rec.Text != "short" {
		t.Errorf("read back %q, want short", rec.Text)
	}
}

func TestTag_LongTLV(t *testing.T) {
	mem := NewMemoryPages(NTAG216, true)
	tag := New(mem, "04CC", NTAG216)
	text := strings.Repeat("x", 600)

	writeText(t, tag, nfc.WriteRequest{Text: text})

	if p := mem.Page(4); p[0] != 0x03 || p[1] != 0xFF {
		t.Errorf("first data page = % X, want long TLV header", p)
	}
	if rec := readText(t, tag); rec.Text != text {
		t.Errorf("read back %d bytes, want %d", len(rec.Text), len(text))
	}
}

func TestTag_MaxSize(t *testing.T) {
	tests := []struct {
		model Model
		want  int
	}{
		{model: Ultralight, want: 45},
		{model: NTAG213, want: 141},
		{model: NTAG215, want: 499},
		{model: NTAG216, want: 867},
	}

	for _, tt := range tests {
		t.Run(tt.model.Name, func(t *testing.T) {
			tag := New(NewMemoryPages(tt.model, true), "04DD", tt.model)
			if got := tag.MaxSize(); got != tt.want {
				t.Errorf("MaxSize() = %d, want %d", got, tt.want)
			}
			if got := tt.model.MaxMessageSize(); got != tt.want {
				t.Errorf("MaxMessageSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTag_ExactCapacity(t *testing.T) {
	tag := New(NewMemoryPages(NTAG216, true), "04EE", NTAG216)

	// 867-byte message: 1 header + 1 type length + 4 payload length + 1
	// type + 860 payload (status, "en", 857 text bytes).
	text := strings.Repeat("z", 857)
	writeText(t, tag, nfc.WriteRequest{Text: text})
	if rec := readText(t, tag); rec.Text != text {
		t.Error("full tag did not read back")
	}

	_, err := nfc.WriteText(context.Background(), tag, nfc.WriteRequest{Text: text + "z"})
	if !errors.Is(err, nfc.ErrCapacityExceeded) {
		t.Errorf("WriteText() one byte over error = %v, want CapacityExceeded", err)
	}
}

func TestTag_CapacityExceededLeavesTagUntouched(t *testing.T) {
	mem := NewMemoryPages(Ultralight, false)
	tag := New(mem, "04FF", Ultralight)

	_, err := nfc.WriteText(context.Background(), tag, nfc.WriteRequest{Text: strings.Repeat("a", 100)})
	if !errors.Is(err, nfc.ErrCapacityExceeded) {
		t.Fatalf("WriteText() error = %v, want CapacityExceeded", err)
	}
	if mem.Writes() != 0 {
		t.Errorf("%d pages written", mem.Writes())
	}
}

func TestTag_WriteAndLock(t *testing.T) {
	mem := NewMemoryPages(NTAG216, true)
	tag := New(mem, "04AB", NTAG216)

	result := writeText(t, tag, nfc.WriteRequest{Text: "final", LockAfterWrite: true, LockConfirmed: true})
	if !result.Written || !result.Locked {
		t.Fatalf("result = %+v, want written and locked", result)
	}

	if cc := mem.Page(pageCC); cc[3] != accessReadOnly {
		t.Errorf("CC access byte = 0x%02X, want 0x0F", cc[3])
	}
	if lock := mem.Page(pageLock); lock[2] != 0xFF || lock[3] != 0xFF {
		t.Errorf("static lock bytes = % X", lock[2:])
	}
	if dyn := mem.Page(NTAG216.DynLockPage); dyn != [4]byte{0xFF, 0xFF, 0xFF, 0x00} {
		t.Errorf("dynamic lock bytes = % X", dyn)
	}

	if rec := readText(t, tag); rec.Text != "final" {
		t.Errorf("read back %q after lock", rec.Text)
	}

	_, err := nfc.WriteText(context.Background(), tag, nfc.WriteRequest{Text: "again"})
	if !errors.Is(err, nfc.ErrTagReadOnly) {
		t.Errorf("WriteText() on locked tag error = %v, want TagReadOnly", err)
	}

	mem.Open()
	defer mem.Close()
	if err := mem.WritePage(4, [4]byte{}); err == nil {
		t.Error("locked data page accepted a write")
	}
}

func TestTag_WriteFailure(t *testing.T) {
	mem := NewMemoryPages(NTAG213, true)
	mem.FailWrite = map[byte]error{5: errors.New("NAK")}
	tag := New(mem, "04AC", NTAG213)

	result, err := nfc.WriteText(context.Background(), tag, nfc.WriteRequest{Text: "spans several pages"})
	if !errors.Is(err, nfc.ErrWriteFailed) {
		t.Fatalf("WriteText() error = %v, want WriteFailed", err)
	}
	if result.Written {
		t.Error("result.Written = true after failure")
	}
}

func TestTag_LockFailure(t *testing.T) {
	mem := NewMemoryPages(NTAG213, true)
	mem.FailWrite = map[byte]error{NTAG213.DynLockPage: errors.New("NAK")}
	tag := New(mem, "04AD", NTAG213)

	result, err := nfc.WriteText(context.Background(), tag,
		nfc.WriteRequest{Text: "x", LockAfterWrite: true, LockConfirmed: true})
	if !errors.Is(err, nfc.ErrLockFailed) {
		t.Fatalf("WriteText() error = %v, want LockFailed", err)
	}
	if !result.Written || result.Locked {
		t.Errorf("result = %+v, want written, not locked", result)
	}
}

func TestTag_CorruptData(t *testing.T) {
	t.Run("TLV past data area", func(t *testing.T) {
		mem := NewMemoryPages(Ultralight, true)
		mem.Open()
		mem.WritePage(4, [4]byte{0x03, 0xFF, 0x10, 0x00})
		mem.Close()

		tag := New(mem, "04AE", Ultralight)
		if err := tag.Connect(); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if _, err := tag.CachedMessage(); !errors.Is(err, nfc.ErrInvalidNdefMessage) {
			t.Errorf("CachedMessage() error = %v, want InvalidNdefMessage", err)
		}
		if err := tag.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	t.Run("broken TLV is rewritable", func(t *testing.T) {
		mem := NewMemoryPages(NTAG213, true)
		mem.Open()
		// NDEF TLV claiming 200 bytes in a 144 byte data area.
		mem.WritePage(4, [4]byte{0x03, 0xC8, 0xD1, 0x01})
		mem.Close()

		tag := New(mem, "04B2", NTAG213)
		_, err := nfc.ReadText(context.Background(), tag)
		if !errors.Is(err, nfc.ErrInvalidNdefMessage) {
			t.Fatalf("ReadText() error = %v, want InvalidNdefMessage", err)
		}
		if code := nfc.GetErrorCode(err); code == nfc.ErrCodeConnectionFailed {
			t.Errorf("ReadText() reported a lost tag: %v", err)
		}

		res := writeText(t, tag, nfc.WriteRequest{Text: "Hello", Language: "en"})
		if res.Formatted || !res.Written {
			t.Errorf("WriteText() = %+v, want a plain overwrite", res)
		}
		if got := readText(t, tag); got.Text != "Hello" {
			t.Errorf("ReadText() text = %q, want Hello", got.Text)
		}
	})

	t.Run("undecodable record", func(t *testing.T) {
		mem := NewMemoryPages(Ultralight, true)
		mem.Open()
		mem.WritePage(4, [4]byte{0x03, 0x02, 0xB1, 0x01})
		mem.WritePage(5, [4]byte{0xFE, 0x00, 0x00, 0x00})
		mem.Close()

		tag := New(mem, "04AF", Ultralight)
		_, err := nfc.ReadText(context.Background(), tag)
		if !errors.Is(err, nfc.ErrInvalidNdefMessage) {
			t.Fatalf("ReadText() error = %v, want InvalidNdefMessage", err)
		}
	})

	t.Run("null TLVs only", func(t *testing.T) {
		mem := NewMemoryPages(Ultralight, false)
		mem.Open()
		mem.WritePage(pageCC, [4]byte{ccMagic, ccVersion, Ultralight.CCSize, accessOpen})
		mem.Close()

		tag := New(mem, "04B0", Ultralight)
		_, err := nfc.ReadText(context.Background(), tag)
		if !errors.Is(err, nfc.ErrNoNdefMessage) {
			t.Fatalf("ReadText() error = %v, want NoNdefMessage", err)
		}
	})
}

func TestTag_RequiresConnection(t *testing.T) {
	tag := New(NewMemoryPages(NTAG213, true), "04B1", NTAG213)

	if _, err := tag.IsFormatted(); err == nil {
		t.Error("IsFormatted() before Connect succeeded")
	}
	if _, err := tag.CachedMessage(); err == nil {
		t.Error("CachedMessage() before Connect succeeded")
	}
	if err := tag.MakeReadOnly(); err == nil {
		t.Error("MakeReadOnly() before Connect succeeded")
	}

	if err := tag.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := tag.Connect(); err == nil {
		t.Error("second Connect() succeeded")
	}
	if err := tag.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestTag_FormatUnknownModel(t *testing.T) {
	tag := New(NewMemoryPages(NTAG213, false), "04B2", Model{Name: "unknown"})
	if err := tag.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tag.Close()

	msg, _ := nfc.NewTextMessage("en", "x")
	if err := tag.Format(msg); !nfc.IsNotSupportedError(err) {
		t.Errorf("Format() error = %v, want NotSupported", err)
	}
}
