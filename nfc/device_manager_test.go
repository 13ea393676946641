package nfc

import (
	"errors"
	"fmt"
	"testing"
)

type failingManager struct {
	listErr error
	devices []string
}

func (m *failingManager) OpenDevice(string) (Device, error) {
	return nil, errors.New("open failed")
}

func (m *failingManager) ListDevices() ([]string, error) {
	return m.devices, m.listErr
}

func TestDeviceManager_TryConnect(t *testing.T) {
	dev := NewSimDevice("sim0")
	dm := NewDeviceManager(NewSimManager(dev), "")

	if dm.HasDevice() {
		t.Fatal("HasDevice() = true before connecting")
	}
	if got := dm.Status(); got.Connected || got.Message != "Not connected" {
		t.Errorf("Status() = %+v before connecting", got)
	}

	if err := dm.TryConnect(); err != nil {
		t.Fatalf("TryConnect() error = %v", err)
	}
	if !dm.HasDevice() || dm.Device() != dev {
		t.Error("device not recorded after TryConnect")
	}
	if dm.DevicePath() != "sim0" {
		t.Errorf("DevicePath() = %q, want sim0", dm.DevicePath())
	}
	if got := dm.Status(); !got.Connected || got.Message != "Connected to sim0" {
		t.Errorf("Status() = %+v", got)
	}

	// Connected and responsive: nothing to do.
	if err := dm.TryConnect(); err != nil {
		t.Errorf("second TryConnect() error = %v", err)
	}

	dm.Close()
	if dm.HasDevice() || dev.IsOpen {
		t.Error("Close() left the device open")
	}
}

func TestDeviceManager_TryConnectErrors(t *testing.T) {
	tests := []struct {
		name    string
		manager Manager
		path    string
	}{
		{name: "list fails", manager: &failingManager{listErr: errors.New("usb")}},
		{name: "no devices", manager: &failingManager{}},
		{name: "open fails", manager: &failingManager{devices: []string{"pn533"}}},
		{name: "unknown sim device", manager: NewSimManager(NewSimDevice("sim0")), path: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := NewDeviceManager(tt.manager, tt.path)
			if err := dm.TryConnect(); err == nil {
				t.Fatal("TryConnect() error = nil")
			}
			if dm.HasDevice() {
				t.Error("HasDevice() = true after failure")
			}
		})
	}
}

func TestDeviceManager_TryConnectInitFailure(t *testing.T) {
	dev := NewSimDevice("sim0")
	dev.InitError = errors.New("no firmware")
	dm := NewDeviceManager(NewSimManager(dev), "sim0")

	if err := dm.TryConnect(); err == nil {
		t.Fatal("TryConnect() error = nil")
	}
	if dev.IsOpen {
		t.Error("device left open after init failure")
	}
}

func TestDeviceManager_HandleErrorCooldown(t *testing.T) {
	dev := NewSimDevice("sim0")
	dm := NewDeviceManager(NewSimManager(dev), "")
	if err := dm.TryConnect(); err != nil {
		t.Fatalf("TryConnect() error = %v", err)
	}

	stop := make(chan struct{})
	close(stop)

	retries, cooldown := dm.HandleError(fmt.Errorf("%w: %w", ErrIO, ErrACR122Specific), 2, stop)
	if !cooldown {
		t.Error("HandleError() did not start a cooldown")
	}
	if retries != 2 {
		t.Errorf("retry count = %d, want 2", retries)
	}
	if dm.HasDevice() {
		t.Error("device kept after IO error")
	}
	if !dm.InCooldown() {
		t.Error("InCooldown() = false")
	}
	if got := dm.Status().Message; got != "Device in cooldown" {
		t.Errorf("Status().Message = %q", got)
	}
}

func TestDeviceManager_HandleErrorTimeout(t *testing.T) {
	dev := NewSimDevice("sim0")
	dm := NewDeviceManager(NewSimManager(dev), "")
	dm.TryConnect()

	stop := make(chan struct{})
	close(stop)

	retries, cooldown := dm.HandleError(ErrTimeout, 0, stop)
	if cooldown {
		t.Error("first timeout started a cooldown")
	}
	if retries != 1 {
		t.Errorf("retry count = %d, want 1", retries)
	}

	retries, cooldown = dm.HandleError(ErrTimeout, MaxRetries, stop)
	if !cooldown || retries != MaxRetries {
		t.Errorf("HandleError() at max retries = (%d, %v), want (%d, true)", retries, cooldown, MaxRetries)
	}
	if !dm.InCooldown() || dm.HasDevice() {
		t.Error("max retries did not drop the device into cooldown")
	}
}

func TestDeviceManager_HandleErrorUnknown(t *testing.T) {
	dev := NewSimDevice("sim0")
	dm := NewDeviceManager(NewSimManager(dev), "")
	dm.TryConnect()

	retries, cooldown := dm.HandleError(errors.New("something else"), 3, nil)
	if retries != 3 || cooldown {
		t.Errorf("HandleError() = (%d, %v), want (3, false)", retries, cooldown)
	}
	if !dm.HasDevice() {
		t.Error("unknown error dropped the device")
	}
}
