package nfc

import (
	"fmt"
	"sync"
)

// NTAG216 data area (872 bytes) minus the long-form TLV header and
// terminator.
const defaultMockMaxSize = 867

// MockTag is an in-memory implementation of Tag that simulates NFC tag
// behavior.
//
// MockTag backs tests and the simulated device. Every call is recorded in
// CallLog so tests can assert on the exact order of tag operations.
//
// Example:
//
//	tag := nfc.NewMockTag("04A1B2C3")
//	tag.Message, _ = nfc.NewTextMessage("en", "Hello")
//	rec, _ := nfc.ReadText(ctx, tag)
type MockTag struct {
	// TagUID is the UID returned by UID()
	TagUID string

	// TagType is the type string returned by Type()
	TagType string

	// Message is the NDEF message currently stored on the tag (nil: none)
	Message *NDEFMessage

	// Unformatted marks a blank tag without a capability container
	Unformatted bool

	// IsReadOnly tracks whether the tag is in read-only mode
	IsReadOnly bool

	// Capacity is the value returned by MaxSize()
	Capacity int

	// ConnectError, if set, will be returned by Connect()
	ConnectError error

	// CloseError, if set, will be returned by Close()
	CloseError error

	// IsWritableError, if set, will be returned by IsWritable()
	IsWritableError error

	// CachedMessageError, if set, will be returned by CachedMessage()
	CachedMessageError error

	// FormatError, if set, will be returned by Format()
	FormatError error

	// WriteError, if set, will be returned by WriteMessage()
	WriteError error

	// MakeReadOnlyError, if set, will be returned by MakeReadOnly()
	MakeReadOnlyError error

	// IsConnected tracks whether the tag is currently connected
	IsConnected bool

	// CallLog tracks all method calls for verification in tests
	CallLog []string

	mu sync.Mutex
}

// NewMockTag creates a new formatted, writable, empty MockTag.
func NewMockTag(uid string) *MockTag {
	return &MockTag{
		TagUID:   uid,
		TagType:  "Mock NTAG216",
		Capacity: defaultMockMaxSize,
		CallLog:  make([]string, 0),
	}
}

// UID returns the tag's UID.
func (m *MockTag) UID() string {
	return m.TagUID
}

// Type returns the tag's type string.
func (m *MockTag) Type() string {
	return m.TagType
}

// Connect simulates connecting to the tag.
func (m *MockTag) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "Connect")

	if m.IsConnected {
		return fmt.Errorf("tag already connected")
	}
	if m.ConnectError != nil {
		return m.ConnectError
	}

	m.IsConnected = true
	return nil
}

// Close simulates disconnecting from the tag.
func (m *MockTag) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "Close")

	if !m.IsConnected {
		return fmt.Errorf("tag not connected")
	}
	m.IsConnected = false

	return m.CloseError
}

// IsFormatted reports whether the tag has been NDEF-formatted.
func (m *MockTag) IsFormatted() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "IsFormatted")

	if !m.IsConnected {
		return false, fmt.Errorf("tag not connected")
	}
	return !m.Unformatted, nil
}

// IsWritable simulates checking if the tag is writable.
func (m *MockTag) IsWritable() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "IsWritable")

	if !m.IsConnected {
		return false, fmt.Errorf("tag not connected")
	}
	if m.IsWritableError != nil {
		return false, m.IsWritableError
	}
	return !m.IsReadOnly, nil
}

// MaxSize returns the configured capacity.
func (m *MockTag) MaxSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Capacity
}

// CachedMessage returns the stored message.
func (m *MockTag) CachedMessage() (*NDEFMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "CachedMessage")

	if !m.IsConnected {
		return nil, fmt.Errorf("tag not connected")
	}
	if m.CachedMessageError != nil {
		return nil, m.CachedMessageError
	}
	return m.Message, nil
}

// Format simulates formatting a blank tag with an initial message.
func (m *MockTag) Format(msg *NDEFMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "Format")

	if !m.IsConnected {
		return fmt.Errorf("tag not connected")
	}
	if !m.Unformatted {
		return fmt.Errorf("tag already formatted")
	}
	if m.FormatError != nil {
		return m.FormatError
	}

	m.Unformatted = false
	m.Message = msg
	return nil
}

// WriteMessage simulates writing a message to the tag.
func (m *MockTag) WriteMessage(msg *NDEFMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "WriteMessage")

	if !m.IsConnected {
		return fmt.Errorf("tag not connected")
	}
	if m.IsReadOnly {
		return fmt.Errorf("tag is read-only")
	}
	if m.WriteError != nil {
		return m.WriteError
	}

	m.Message = msg
	return nil
}

// MakeReadOnly simulates making the tag read-only.
func (m *MockTag) MakeReadOnly() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "MakeReadOnly")

	if !m.IsConnected {
		return fmt.Errorf("tag not connected")
	}
	if m.MakeReadOnlyError != nil {
		return m.MakeReadOnlyError
	}

	m.IsReadOnly = true
	return nil
}

// GetCallLog returns a copy of the call log for verification.
func (m *MockTag) GetCallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	logCopy := make([]string, len(m.CallLog))
	copy(logCopy, m.CallLog)
	return logCopy
}

// ClearCallLog clears the call log.
func (m *MockTag) ClearCallLog() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = make([]string, 0)
}
