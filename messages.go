package main

import (
	"fmt"
	"strings"

	"github.com/dotside-studios/davi-ndef-agent/nfc"
)

// describeError turns a tag operation error into a message for the user.
func describeError(err error) string {
	if err == nil {
		return ""
	}
	switch nfc.GetErrorCode(err) {
	case nfc.ErrCodeConnectionFailed:
		return "Lost the tag. Hold it steady on the reader and try again."
	case nfc.ErrCodeTagReadOnly:
		return "The tag is read-only."
	case nfc.ErrCodeCapacityExceeded:
		return "The text does not fit on this tag."
	case nfc.ErrCodeNoNdefMessage:
		return "The tag holds no text."
	case nfc.ErrCodeInvalidNdefMessage, nfc.ErrCodeTruncatedPayload, nfc.ErrCodeEmptyPayload:
		return "The tag's data could not be decoded."
	case nfc.ErrCodeInvalidLanguageCode:
		return "Invalid language code."
	case nfc.ErrCodeWriteFailed:
		return "Writing failed. The tag may hold partial data, write it again."
	case nfc.ErrCodeLockFailed:
		return "The text was written but locking failed."
	case nfc.ErrCodeLockNotConfirmed:
		return "Locking a tag is permanent and needs confirmation."
	case nfc.ErrCodeNotSupported:
		return "This tag does not support the operation."
	default:
		return err.Error()
	}
}

// describeWrite summarises a successful write.
func describeWrite(ev nfc.TagEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wrote %d bytes to %s", ev.Write.Bytes, ev.UID)
	var notes []string
	if ev.Write.Formatted {
		notes = append(notes, "formatted")
	}
	if ev.Write.Locked {
		notes = append(notes, "locked")
	}
	if ev.Write.LockSkipped {
		notes = append(notes, "not locked: tag was blank")
	}
	if len(notes) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(notes, ", "))
	}
	return b.String()
}
