package nfc

import (
	"errors"
	"fmt"
)

// TLV types used in the data area of Type 2 tags.
const (
	TLVNull        = 0x00 // Null TLV
	TLVLockCtrl    = 0x01 // Lock Control TLV
	TLVMemCtrl     = 0x02 // Memory Control TLV
	TLVNDEF        = 0x03 // NDEF Message TLV
	TLVProprietary = 0xFD // Proprietary TLV
	TLVTerminator  = 0xFE // Terminator TLV
)

// MaxTLVLength is the largest value a three-byte length field can carry.
const MaxTLVLength = 0xFFFE

// TLVEncode encodes data into TLV format followed by a Terminator TLV.
// Returns: [Type][Length][Value][0xFE]
func TLVEncode(data []byte, tlvType byte) ([]byte, error) {
	length := len(data)
	if length > MaxTLVLength {
		return nil, fmt.Errorf("TLV value too large: %d bytes (max %d)", length, MaxTLVLength)
	}

	result := make([]byte, 0, TLVOverhead(length)+length)
	result = append(result, tlvType)
	if length < 0xFF {
		result = append(result, byte(length))
	} else {
		// Long format: 0xFF followed by 2-byte big-endian length
		result = append(result, 0xFF, byte(length>>8), byte(length))
	}
	result = append(result, data...)
	result = append(result, TLVTerminator)
	return result, nil
}

// TLVOverhead returns the bytes TLVEncode adds around a value of the given
// length: type, length field and terminator.
func TLVOverhead(length int) int {
	if length < 0xFF {
		return 3
	}
	return 5
}

// TLVRecordLength returns the offset of the length field and the offset of
// the value, both relative to the type byte. Returns (0, 0) if malformed.
func TLVRecordLength(data []byte) (fls, fvs int) {
	if len(data) < 2 {
		return 0, 0
	}
	if data[1] == 0xFF {
		if len(data) < 4 {
			return 0, 0
		}
		return 1, 4
	}
	return 1, 2
}

// TLVGetLength extracts the value length of a TLV starting at data[0].
func TLVGetLength(data []byte) int {
	if len(data) < 2 {
		return 0
	}
	if data[1] == 0xFF {
		if len(data) < 4 {
			return 0
		}
		return int(data[2])<<8 | int(data[3])
	}
	return int(data[1])
}

// TLVFindNDEF errors. Both mean data ended before the walk could finish,
// so a caller reading a tag page by page can fetch more and retry.
var (
	ErrTLVCut          = errors.New("TLV runs past the end of data")
	ErrTLVUnterminated = errors.New("no Terminator TLV")
)

// TLVFindNDEF walks a TLV block and returns the value of the first NDEF
// Message TLV. found is false when a Terminator is reached first. A TLV
// that continues past data wraps ErrTLVCut; data holding only complete
// non-NDEF TLVs returns ErrTLVUnterminated.
func TLVFindNDEF(data []byte) (value []byte, found bool, err error) {
	offset := 0
	for offset < len(data) {
		tlvType := data[offset]

		switch tlvType {
		case TLVNull:
			offset++
			continue
		case TLVTerminator:
			return nil, false, nil
		}

		_, fvs := TLVRecordLength(data[offset:])
		if fvs == 0 {
			return nil, false, fmt.Errorf("TLV 0x%02X at offset %d: length field: %w", tlvType, offset, ErrTLVCut)
		}
		length := TLVGetLength(data[offset:])
		valueStart := offset + fvs
		if valueStart+length > len(data) {
			return nil, false, fmt.Errorf("TLV 0x%02X at offset %d: value of %d bytes: %w", tlvType, offset, length, ErrTLVCut)
		}

		if tlvType == TLVNDEF {
			return data[valueStart : valueStart+length], true, nil
		}
		offset = valueStart + length
	}
	return nil, false, ErrTLVUnterminated
}
