package nfc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mode selects what the next tag presentation does.
type Mode int

const (
	// ModeRead decodes the tag's text record (default).
	ModeRead Mode = iota
	// ModeWrite writes the pending request to the next tag, then returns
	// to ModeRead.
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return "unknown"
	}
}

// EventKind says which procedure produced a TagEvent.
type EventKind int

const (
	EventRead EventKind = iota
	EventWrite
)

func (k EventKind) String() string {
	if k == EventWrite {
		return "write"
	}
	return "read"
}

// TagEvent is the outcome of one tag presentation.
type TagEvent struct {
	UID      string
	Kind     EventKind
	Text     string // Decoded text (read) or written text (write)
	Language string
	Write    WriteResult // Only set for EventWrite
	Err      error
	At       time.Time
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// Language is used for every write. Defaults to DefaultLanguage.
	Language string
	// RequireLockConfirm rejects lock requests that were not explicitly
	// confirmed. When false, requesting a lock counts as confirming it.
	RequireLockConfirm bool
	Clock              Clock
}

// Session holds the state shared between the UI and the tag watcher: the
// current mode, the pending write and the last read value.
//
// All methods are safe for concurrent use. The lock is never held while a
// tag is being read or written.
type Session struct {
	language       string
	requireConfirm bool
	clock          Clock

	mu        sync.Mutex
	mode      Mode
	pending   *WriteRequest
	lastRead  *TextRecord
	lastEvent *TagEvent
}

// NewSession creates a Session in read mode.
func NewSession(opts SessionOptions) *Session {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Clock == nil {
		opts.Clock = NewRealClock()
	}
	return &Session{
		language:       opts.Language,
		requireConfirm: opts.RequireLockConfirm,
		clock:          opts.Clock,
	}
}

// Language returns the language code used for writes.
func (s *Session) Language() string {
	return s.language
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// ArmWrite switches to write mode with a new pending request, replacing any
// earlier one. The request is validated up front so a bad language or an
// unconfirmed lock fails here rather than at the tag.
func (s *Session) ArmWrite(text string, lock, confirmed bool) (WriteRequest, error) {
	const op = "ArmWrite"

	if !s.requireConfirm {
		confirmed = lock
	}
	if lock && !confirmed {
		return WriteRequest{}, Errorf(ErrCodeLockNotConfirmed, op, "lock requested without confirmation")
	}
	if _, err := EncodeTextRecord(s.language, text); err != nil {
		return WriteRequest{}, err
	}

	req := WriteRequest{
		ID:             uuid.NewString(),
		Text:           text,
		Language:       s.language,
		LockAfterWrite: lock,
		LockConfirmed:  confirmed,
	}

	s.mu.Lock()
	s.mode = ModeWrite
	s.pending = &req
	s.mu.Unlock()

	Logger().Info("write armed",
		zap.String("request", req.ID), zap.Int("chars", len(text)), zap.Bool("lock", lock))
	return req, nil
}

// Disarm drops the pending request and returns to read mode.
func (s *Session) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		Logger().Info("write disarmed", zap.String("request", s.pending.ID))
	}
	s.mode = ModeRead
	s.pending = nil
}

// Pending returns the pending write request, if any.
func (s *Session) Pending() (WriteRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return WriteRequest{}, false
	}
	return *s.pending, true
}

// LastRead returns the most recently decoded text record.
func (s *Session) LastRead() (TextRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRead == nil {
		return TextRecord{}, false
	}
	return *s.lastRead, true
}

// LastEvent returns the outcome of the most recent presentation.
func (s *Session) LastEvent() (TagEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastEvent == nil {
		return TagEvent{}, false
	}
	return *s.lastEvent, true
}

// take consumes the pending request and returns to read mode.
func (s *Session) take() (WriteRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeWrite || s.pending == nil {
		return WriteRequest{}, false
	}
	req := *s.pending
	s.pending = nil
	s.mode = ModeRead
	return req, true
}

// HandleTag processes one tag presentation. In write mode the pending
// request is consumed before the tag is touched, so it is attempted at most
// once whatever the outcome. Otherwise the tag is read and a successfully
// decoded record becomes the last read value.
func (s *Session) HandleTag(ctx context.Context, tag Tag) TagEvent {
	event := TagEvent{UID: tag.UID()}

	if req, ok := s.take(); ok {
		event.Kind = EventWrite
		event.Text = req.Text
		event.Language = req.Language
		event.Write, event.Err = WriteText(ctx, tag, req)
		if event.Err != nil {
			Logger().Warn("write failed", zap.String("uid", event.UID),
				zap.String("request", req.ID), zap.Error(event.Err))
		}
	} else {
		event.Kind = EventRead
		rec, err := ReadText(ctx, tag)
		event.Err = err
		if err == nil {
			event.Text = rec.Text
			event.Language = rec.Language
		} else {
			Logger().Info("read failed", zap.String("uid", event.UID), zap.Error(err))
		}
	}
	event.At = s.clock.Now()

	s.mu.Lock()
	if event.Kind == EventRead && event.Err == nil {
		s.lastRead = &TextRecord{Language: event.Language, Text: event.Text}
	}
	s.lastEvent = &event
	s.mu.Unlock()

	return event
}
