package nfc

// Tag represents a transient connection to a physical NFC tag.
//
// A Tag is handed out by a Device when a tag enters the field. It is not
// owned by the write or read procedures: they only Connect, use and Close
// it. All methods other than UID, Type and Connect require an open
// connection.
//
// Example:
//
//	tags, _ := device.GetTags()
//	for _, tag := range tags {
//	    rec, err := nfc.ReadText(ctx, tag)
//	}
type Tag interface {
	UID() string
	Type() string

	// Connect opens the connection and captures the tag's NDEF state
	// (formatted flag, capacity, cached message).
	Connect() error
	// Close releases the connection.
	Close() error

	// IsFormatted reports whether the tag already carries an NDEF
	// capability container.
	IsFormatted() (bool, error)
	// IsWritable reports whether the tag accepts NDEF writes.
	IsWritable() (bool, error)
	// MaxSize is the largest NDEF message, in bytes, the tag can hold.
	MaxSize() int
	// CachedMessage returns the NDEF message read at Connect time, or nil
	// if the tag carries none.
	CachedMessage() (*NDEFMessage, error)

	// Format initialises an unformatted tag and writes msg in one step.
	Format(msg *NDEFMessage) error
	// WriteMessage replaces the tag's NDEF message.
	WriteMessage(msg *NDEFMessage) error
	// MakeReadOnly permanently write-protects the tag. Irreversible.
	MakeReadOnly() error
}
