package nfc

import (
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
)

// Text record status byte layout (NFC Forum Text RTD).
const (
	textStatusUTF16      = 0x80 // bit 7: text is UTF-16
	textStatusLangMask   = 0x3F // bits 0-5: language code length
	MaxLanguageCodeBytes = textStatusLangMask
)

// DefaultLanguage is used when no language code is configured.
const DefaultLanguage = "en"

// TextRecord is the decoded content of an NDEF Text record.
type TextRecord struct {
	Language string
	Text     string
}

// EncodeTextRecord builds the payload of a Text record:
// [status][language ASCII][text UTF-8].
//
// The encoder only emits UTF-8. Language codes longer than 63 bytes or
// containing non-ASCII bytes are rejected rather than truncated.
func EncodeTextRecord(language, text string) ([]byte, error) {
	if len(language) > MaxLanguageCodeBytes {
		return nil, Errorf(ErrCodeInvalidLanguageCode, "EncodeTextRecord",
			"language code is %d bytes, max %d", len(language), MaxLanguageCodeBytes)
	}
	for i := 0; i < len(language); i++ {
		if language[i] > 0x7F {
			return nil, Errorf(ErrCodeInvalidLanguageCode, "EncodeTextRecord",
				"language code %q is not ASCII", language)
		}
	}

	payload := make([]byte, 1+len(language)+len(text))
	payload[0] = byte(len(language))
	copy(payload[1:], language)
	copy(payload[1+len(language):], text)
	return payload, nil
}

// DecodeTextRecord parses the payload of a Text record.
//
// Bit 7 of the status byte alone selects UTF-16; the length of the text
// has no influence on the choice. UTF-16 text honours a byte order mark
// and is big-endian otherwise.
func DecodeTextRecord(payload []byte) (TextRecord, error) {
	if len(payload) == 0 {
		return TextRecord{}, WrapError(ErrCodeEmptyPayload, "DecodeTextRecord", "empty payload", nil)
	}

	status := payload[0]
	langLen := int(status & textStatusLangMask)
	if len(payload) < 1+langLen {
		return TextRecord{}, Errorf(ErrCodeTruncatedPayload, "DecodeTextRecord",
			"payload is %d bytes, language code needs %d", len(payload), 1+langLen)
	}

	record := TextRecord{Language: string(payload[1 : 1+langLen])}
	textBytes := payload[1+langLen:]

	if status&textStatusUTF16 == 0 {
		record.Text = string(textBytes)
		return record, nil
	}

	record.Text = decodeUTF16(textBytes)
	return record, nil
}

// decodeUTF16 never fails: unpaired surrogates and an odd trailing byte
// decode to U+FFFD.
func decodeUTF16(b []byte) string {
	endianness := unicode.BigEndian
	switch {
	case len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF:
		b = b[2:]
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xFE:
		endianness = unicode.LittleEndian
		b = b[2:]
	}
	if len(b) == 0 {
		return ""
	}
	out, err := unicode.UTF16(endianness, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		Logger().Debug("UTF-16 decoder reported an error", zap.Error(err))
	}
	return string(out)
}
