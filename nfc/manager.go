package nfc

// Manager handles NFC device discovery.
//
// Manager provides methods to list available NFC readers and open connections
// to devices. Implementations live in the backend packages (libnfc, pcsc) and
// in SimManager.
//
// Example:
//
//	manager := libnfc.NewManager(type2.NTAG216)
//	devices, _ := manager.ListDevices()
//	device, _ := manager.OpenDevice(devices[0])
//	tags, _ := device.GetTags()
type Manager interface {
	OpenDevice(deviceStr string) (Device, error)
	ListDevices() ([]string, error)
}
