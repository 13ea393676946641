package pcsc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ebfe/scard"
	"github.com/google/go-cmp/cmp"
)

func TestAPDUBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{name: "get UID", got: GetUIDAPDU(), want: []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}},
		{name: "read page", got: ReadPageAPDU(0x04), want: []byte{0xFF, 0xB0, 0x00, 0x04, 0x04}},
		{
			name: "write page",
			got:  WritePageAPDU(0x05, [4]byte{0xDE, 0xAD, 0xBE, 0xEF}),
			want: []byte{0xFF, 0xD6, 0x00, 0x05, 0x04, 0xDE, 0xAD, 0xBE, 0xEF},
		},
		{name: "get version", got: GetVersionAPDU(), want: []byte{0xFF, 0x00, 0x00, 0x00, 0x01, 0x60, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.got); diff != "" {
				t.Errorf("APDU mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseAPDUResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		want    APDUResponse
		wantErr bool
		success bool
	}{
		{
			name:    "data with success",
			raw:     []byte{0x04, 0xA1, 0xB2, 0x90, 0x00},
			want:    APDUResponse{Data: []byte{0x04, 0xA1, 0xB2}, SW1: 0x90, SW2: 0x00},
			success: true,
		},
		{
			name: "status only failure",
			raw:  []byte{0x63, 0x00},
			want: APDUResponse{Data: []byte{}, SW1: 0x63, SW2: 0x00},
		},
		{name: "too short", raw: []byte{0x90}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAPDUResponse(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAPDUResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseAPDUResponse() mismatch (-want +got):\n%s", diff)
			}
			if got.IsSuccess() != tt.success {
				t.Errorf("IsSuccess() = %v, want %v", got.IsSuccess(), tt.success)
			}
		})
	}
}

func TestAPDUResponseError(t *testing.T) {
	tests := []struct {
		name    string
		resp    APDUResponse
		wantErr bool
	}{
		{name: "success", resp: APDUResponse{SW1: 0x90, SW2: 0x00}},
		{name: "more data", resp: APDUResponse{SW1: 0x61, SW2: 0x10}},
		{name: "operation failed", resp: APDUResponse{SW1: 0x63, SW2: 0x00}, wantErr: true},
		{name: "not supported", resp: APDUResponse{SW1: 0x6A, SW2: 0x81}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.resp.Error(); (err != nil) != tt.wantErr {
				t.Errorf("Error() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFilterContactlessReaders(t *testing.T) {
	tests := []struct {
		name    string
		readers []string
		want    []string
	}{
		{
			name:    "drops SAM slot",
			readers: []string{"ACS ACR1252 Dual Reader [ACR1252 Dual Reader PICC] 00 00", "ACS ACR1252 Dual Reader [ACR1252 Dual Reader SAM] 00 01"},
			want:    []string{"ACS ACR1252 Dual Reader [ACR1252 Dual Reader PICC] 00 00"},
		},
		{
			name:    "prefers contactless",
			readers: []string{"Generic Smart Card Reader 00 00", "Identiv uTrust 3700 F CL Reader 01 00"},
			want:    []string{"Identiv uTrust 3700 F CL Reader 01 00"},
		},
		{
			name:    "falls back to anything else",
			readers: []string{"Generic Smart Card Reader 00 00"},
			want:    []string{"Generic Smart Card Reader 00 00"},
		},
		{name: "none", readers: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterContactlessReaders(tt.readers)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("filterContactlessReaders() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReaderContainsPattern(t *testing.T) {
	tests := map[string]bool{
		"ACS ACR122U PICC Interface 00 00": true,
		"acs acr122u":                      true,
		"SCM Microsystems SCL3711":         true,
		"Yubico YubiKey OTP+FIDO+CCID":     false,
		"":                                 false,
	}
	for name, want := range tests {
		if got := readerContainsPattern(name); got != want {
			t.Errorf("readerContainsPattern(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIsCardRemovedPCSCError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "removed card", err: scard.ErrRemovedCard, want: true},
		{name: "wrapped no smartcard", err: fmt.Errorf("connect: %w", scard.ErrNoSmartcard), want: true},
		{name: "message match", err: errors.New("Card was removed"), want: true},
		{name: "cancelled", err: scard.ErrCancelled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCardRemovedPCSCError(tt.err); got != tt.want {
				t.Errorf("isCardRemovedPCSCError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
