package nfc

// Device represents an NFC reader/writer hardware device.
//
// A Device is obtained from a Manager. GetTags polls the field and returns
// one Tag per target currently in range; the Tags are not yet connected.
//
// Example:
//
//	device, err := manager.OpenDevice("")
//	defer device.Close()
//	tags, err := device.GetTags()
type Device interface {
	Close() error
	InitiatorInit() error
	String() string
	Connection() string
	GetTags() ([]Tag, error)
}
