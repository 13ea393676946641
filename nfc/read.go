package nfc

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ReadText reads the tag's cached NDEF message and decodes record 0 as a
// Text record.
//
// Only the first record is considered; any further records are ignored.
// A record 0 of TNF Empty, as left by a fresh format, counts as no message.
func ReadText(ctx context.Context, tag Tag) (TextRecord, error) {
	const op = "ReadText"

	if err := ctx.Err(); err != nil {
		return TextRecord{}, NewConnectionError(op, err)
	}

	uid := tag.UID()
	if err := tag.Connect(); err != nil {
		return TextRecord{}, NewConnectionError(op, err).WithTag(uid)
	}
	defer func() {
		if err := tag.Close(); err != nil {
			Logger().Warn("close after read failed", zap.String("uid", uid), zap.Error(err))
		}
	}()

	msg, err := tag.CachedMessage()
	if err != nil {
		var nfcErr *NFCError
		if errors.As(err, &nfcErr) {
			return TextRecord{}, nfcErr.WithTag(uid)
		}
		// The tag dropped its snapshot, which only happens when the
		// connection went away.
		return TextRecord{}, NewConnectionError(op, err).WithTag(uid)
	}

	record, ok := msg.First()
	if !ok || record.TNF == TNFEmpty {
		return TextRecord{}, Errorf(ErrCodeNoNdefMessage, op, "tag carries no NDEF message").WithTag(uid)
	}
	if !record.IsTextRecord() {
		Logger().Warn("record 0 is not a text record; decoding anyway",
			zap.String("uid", uid), zap.Uint8("tnf", record.TNF), zap.ByteString("type", record.Type))
	}

	text, err := record.Text()
	if err != nil {
		if nfcErr, ok := err.(*NFCError); ok {
			return TextRecord{}, nfcErr.WithTag(uid)
		}
		return TextRecord{}, err
	}
	return text, nil
}
