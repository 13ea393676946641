package nfc

import (
	"context"

	"go.uber.org/zap"
)

// WriteRequest is a one-shot instruction to write text to the next tag.
type WriteRequest struct {
	ID             string // Correlation ID for logs
	Text           string
	Language       string
	LockAfterWrite bool
	// LockConfirmed records that the user explicitly accepted the
	// irreversible lock. Required when LockAfterWrite is set.
	LockConfirmed bool
}

// WriteResult reports what physically happened to the tag. It is filled in
// even when an error is returned, so callers know whether the tag changed.
type WriteResult struct {
	Formatted   bool // Tag was unformatted and got formatted with the message
	Written     bool // Message is on the tag
	Locked      bool // Tag was made read-only
	LockSkipped bool // Lock was requested but the tag was blank, so it was only formatted
	Bytes       int  // Encoded NDEF message size
}

// WriteText writes req.Text as a single Text record to tag and optionally
// locks it.
//
// ctx is consulted once, before connecting. Once the connection is open the
// procedure runs to the end and the connection is closed exactly once. No
// step is retried; a failed write must be re-presented by the caller.
func WriteText(ctx context.Context, tag Tag, req WriteRequest) (WriteResult, error) {
	const op = "WriteText"
	var result WriteResult

	lang := req.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	msg, err := NewTextMessage(lang, req.Text)
	if err != nil {
		return result, err
	}
	result.Bytes = msg.EncodedLen()

	if req.LockAfterWrite && !req.LockConfirmed {
		return result, Errorf(ErrCodeLockNotConfirmed, op, "lock requested without confirmation")
	}

	if err := ctx.Err(); err != nil {
		return result, NewConnectionError(op, err)
	}

	uid := tag.UID()
	log := Logger().With(zap.String("uid", uid), zap.String("request", req.ID))

	if err := tag.Connect(); err != nil {
		return result, NewConnectionError(op, err).WithTag(uid)
	}
	defer func() {
		if err := tag.Close(); err != nil {
			log.Warn("close after write failed", zap.Error(err))
		}
	}()

	formatted, err := tag.IsFormatted()
	if err != nil {
		return result, NewConnectionError(op, err).WithTag(uid)
	}
	if !formatted {
		if limit := tag.MaxSize(); result.Bytes > limit {
			return result, Errorf(ErrCodeCapacityExceeded, op,
				"message is %d bytes, tag holds %d", result.Bytes, limit).WithTag(uid)
		}
		if err := tag.Format(msg); err != nil {
			return result, NewWriteError(op, err).WithTag(uid)
		}
		result.Formatted = true
		result.Written = true
		if req.LockAfterWrite {
			result.LockSkipped = true
			log.Warn("tag was unformatted; formatted without locking")
		}
		log.Info("formatted tag with text record", zap.Int("bytes", result.Bytes))
		return result, nil
	}

	writable, err := tag.IsWritable()
	if err != nil {
		return result, NewConnectionError(op, err).WithTag(uid)
	}
	if !writable {
		return result, Errorf(ErrCodeTagReadOnly, op, "tag is read-only").WithTag(uid)
	}

	if limit := tag.MaxSize(); result.Bytes > limit {
		return result, Errorf(ErrCodeCapacityExceeded, op,
			"message is %d bytes, tag holds %d", result.Bytes, limit).WithTag(uid)
	}

	if err := tag.WriteMessage(msg); err != nil {
		return result, NewWriteError(op, err).WithTag(uid)
	}
	result.Written = true
	log.Info("wrote text record", zap.Int("bytes", result.Bytes))

	if req.LockAfterWrite {
		if err := tag.MakeReadOnly(); err != nil {
			return result, NewLockError(op, err).WithTag(uid)
		}
		result.Locked = true
		log.Info("tag locked read-only")
	}

	return result, nil
}
