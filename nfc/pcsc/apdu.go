package pcsc

import (
	"errors"
	"fmt"
)

// APDU status words
const (
	SW1Success  = 0x90
	SW2Success  = 0x00
	SW1MoreData = 0x61 // More data available
)

// PC/SC pseudo-APDU class and instructions (PC/SC part 3, ACR122 and
// compatible readers)
const (
	CLAPCSC       = 0xFF
	INSGetUID     = 0xCA
	INSReadBinary = 0xB0
	INSUpdateBin  = 0xD6
	INSDirectCmd  = 0x00
)

// APDUResponse represents a parsed APDU response
type APDUResponse struct {
	Data []byte
	SW1  byte
	SW2  byte
}

// IsSuccess returns true if the response indicates success (SW1=90, SW2=00)
func (r APDUResponse) IsSuccess() bool {
	return r.SW1 == SW1Success && r.SW2 == SW2Success
}

// Error returns an error if the response is not successful
func (r APDUResponse) Error() error {
	if r.IsSuccess() || r.SW1 == SW1MoreData {
		return nil
	}
	return fmt.Errorf("APDU error: SW1=%02X SW2=%02X", r.SW1, r.SW2)
}

// ParseAPDUResponse parses a raw response into APDUResponse
func ParseAPDUResponse(raw []byte) (APDUResponse, error) {
	if len(raw) < 2 {
		return APDUResponse{}, errors.New("response too short")
	}
	return APDUResponse{
		Data: raw[:len(raw)-2],
		SW1:  raw[len(raw)-2],
		SW2:  raw[len(raw)-1],
	}, nil
}

// BuildAPDU constructs an APDU command
func BuildAPDU(cla, ins, p1, p2 byte, data []byte, le *byte) []byte {
	cmd := []byte{cla, ins, p1, p2}

	if len(data) > 0 {
		cmd = append(cmd, byte(len(data)))
		cmd = append(cmd, data...)
	}

	if le != nil {
		cmd = append(cmd, *le)
	}

	return cmd
}

// GetUIDAPDU returns the APDU for getting the card UID: FF CA 00 00 00
func GetUIDAPDU() []byte {
	le := byte(0x00)
	return BuildAPDU(CLAPCSC, INSGetUID, 0x00, 0x00, nil, &le)
}

// ReadPageAPDU reads one 4-byte page: FF B0 00 page 04
func ReadPageAPDU(page byte) []byte {
	le := byte(0x04)
	return BuildAPDU(CLAPCSC, INSReadBinary, 0x00, page, nil, &le)
}

// WritePageAPDU writes one 4-byte page: FF D6 00 page 04 data
func WritePageAPDU(page byte, data [4]byte) []byte {
	return BuildAPDU(CLAPCSC, INSUpdateBin, 0x00, page, data[:], nil)
}

// GetVersionAPDU wraps the NTAG GET_VERSION command in a direct transmit:
// FF 00 00 00 01 60 00
func GetVersionAPDU() []byte {
	le := byte(0x00)
	return BuildAPDU(CLAPCSC, INSDirectCmd, 0x00, 0x00, []byte{0x60}, &le)
}
