package nfc

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DeviceManager handles device lifecycle, connection management, and reconnection logic.
// It maintains a connection to a single NFC device and handles recovery from errors.
type DeviceManager struct {
	manager    Manager
	device     Device
	devicePath string
	hasDevice  bool

	// Reconnection state
	inCooldown    bool
	cooldownTimer *time.Timer

	mu sync.RWMutex
}

// NewDeviceManager creates a new DeviceManager for managing an NFC device connection.
// An empty devicePath selects the first device the manager lists.
func NewDeviceManager(manager Manager, devicePath string) *DeviceManager {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}

	return &DeviceManager{
		manager:       manager,
		devicePath:    devicePath,
		cooldownTimer: timer,
	}
}

// Device returns the current active device, or nil if not connected.
func (dm *DeviceManager) Device() Device {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.device
}

// HasDevice returns true if a device is currently connected.
func (dm *DeviceManager) HasDevice() bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.hasDevice
}

// InCooldown returns true if the device manager is in a cooldown period.
func (dm *DeviceManager) InCooldown() bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.inCooldown
}

// DevicePath returns the path of the device being managed.
func (dm *DeviceManager) DevicePath() string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.devicePath
}

// Status describes the connection for display.
func (dm *DeviceManager) Status() DeviceStatus {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	switch {
	case dm.hasDevice && dm.device != nil:
		return DeviceStatus{Connected: true, Message: fmt.Sprintf("Connected to %s", dm.device.String())}
	case dm.inCooldown:
		return DeviceStatus{Message: "Device in cooldown"}
	default:
		return DeviceStatus{Message: "Not connected"}
	}
}

// TryConnect attempts to connect to the device. If the device is already connected
// and responsive, it returns nil. Otherwise, it attempts to open and initialize the device.
func (dm *DeviceManager) TryConnect() error {
	log := Logger()

	dm.mu.Lock()
	hasDev := dm.hasDevice
	currentDevice := dm.device
	dm.mu.Unlock()

	if hasDev && currentDevice != nil {
		initErr := currentDevice.InitiatorInit()
		if initErr == nil {
			return nil
		}
		log.Warn("device marked connected but init failed, reconnecting", zap.Error(initErr))
		dm.dropDevice()
	}

	devicePathToConnect := dm.DevicePath()
	if devicePathToConnect == "" {
		devices, errList := dm.manager.ListDevices()
		if errList != nil {
			return fmt.Errorf("error listing NFC devices: %w", errList)
		}
		if len(devices) == 0 {
			return fmt.Errorf("no NFC devices found by manager")
		}
		devicePathToConnect = devices[0]
		log.Debug("no device path configured, using first available", zap.String("device", devicePathToConnect))
	}

	newDevice, errOpen := dm.manager.OpenDevice(devicePathToConnect)
	if errOpen != nil {
		return fmt.Errorf("failed to open device %s: %w", devicePathToConnect, errOpen)
	}

	if errInit := newDevice.InitiatorInit(); errInit != nil {
		newDevice.Close()
		return fmt.Errorf("failed to initialize device %s: %w", devicePathToConnect, errInit)
	}

	dm.mu.Lock()
	dm.device = newDevice
	dm.hasDevice = true
	dm.devicePath = devicePathToConnect
	dm.mu.Unlock()

	log.Info("connected to NFC device",
		zap.String("device", newDevice.String()),
		zap.String("connection", newDevice.Connection()))
	return nil
}

// Reconnect attempts to reconnect to the device with linear backoff.
func (dm *DeviceManager) Reconnect(stop <-chan struct{}) error {
	return dm.reconnectDevice(false, stop)
}

// ForceReconnect attempts to force reconnect with device reset wait time.
func (dm *DeviceManager) ForceReconnect(stop <-chan struct{}) error {
	return dm.reconnectDevice(true, stop)
}

func (dm *DeviceManager) reconnectDevice(forceMode bool, stop <-chan struct{}) error {
	mode := "reconnect"
	maxAttempts := MaxReconnectTries
	if forceMode {
		mode = "force reconnect"
		maxAttempts = 3
	}
	log := Logger().With(zap.String("mode", mode))

	dm.dropDevice()

	if forceMode {
		select {
		case <-time.After(DeviceResetWaitTime):
		case <-stop:
			return fmt.Errorf("%s aborted by stop signal", mode)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		connectErr := dm.TryConnect()
		if connectErr == nil {
			log.Info("device reconnected", zap.Int("attempt", attempt))
			return nil
		}

		lastErr = connectErr
		log.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(connectErr))

		var backoffDelay time.Duration
		if forceMode {
			backoffDelay = time.Second * time.Duration(attempt)
		} else {
			backoffDelay = ReconnectDelay * time.Duration(attempt)
		}

		select {
		case <-stop:
			return fmt.Errorf("%s aborted by stop signal", mode)
		case <-time.After(backoffDelay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", mode, maxAttempts, lastErr)
}

// Close closes the current device connection.
func (dm *DeviceManager) Close() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.hasDevice && dm.device != nil {
		if err := dm.device.Close(); err != nil {
			Logger().Warn("error closing device", zap.Error(err))
		}
	}
	dm.device = nil
	dm.hasDevice = false
}

func (dm *DeviceManager) dropDevice() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.hasDevice && dm.device != nil {
		dm.device.Close()
	}
	dm.device = nil
	dm.hasDevice = false
}

func (dm *DeviceManager) startCooldown(d time.Duration) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if !dm.inCooldown {
		dm.inCooldown = true
		dm.cooldownTimer.Reset(d)
	}
}

// HandleError processes device errors and determines the appropriate recovery action.
// Returns the updated retry count and whether a cooldown was initiated.
func (dm *DeviceManager) HandleError(err error, retryCount int, stop <-chan struct{}) (newRetryCount int, needsCooldown bool) {
	log := Logger()

	if IsIOError(err) || IsDeviceConfigError(err) {
		log.Warn("device IO/config error, closing device", zap.Error(err))
		dm.dropDevice()

		if IsACR122Error(err) {
			log.Warn("ACR122-like error, entering cooldown", zap.Duration("cooldown", DeviceErrorCooldownPeriod))
			dm.startCooldown(DeviceErrorCooldownPeriod)
			return retryCount, true
		}

		select {
		case <-time.After(PostErrorPauseTime):
		case <-stop:
			return retryCount, false
		}
		if errReconnect := dm.ForceReconnect(stop); errReconnect != nil {
			log.Error("force reconnection failed", zap.Error(errReconnect))
		}
		return retryCount, false
	}

	if IsTimeoutError(err) || IsDeviceClosedError(err) {
		if retryCount >= MaxRetries {
			log.Error("max retries reached, entering long cooldown", zap.Error(err))
			dm.dropDevice()
			dm.startCooldown(MaxRetriesCooldownPeriod)
			return retryCount, true
		}

		retryCount++
		delay := time.Duration(math.Pow(2, float64(retryCount-1))) * BaseDelay
		log.Warn("device timeout, retrying",
			zap.Int("attempt", retryCount), zap.Int("max", MaxRetries), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-time.After(delay):
		case <-stop:
			return retryCount, false
		}
		if errReconnect := dm.Reconnect(stop); errReconnect != nil {
			log.Error("device reconnection failed", zap.Error(errReconnect))
			return retryCount, false
		}
		return 0, false
	}

	// Unhandled error - caller decides
	log.Warn("unhandled device error", zap.Error(err))
	return retryCount, false
}

// EndCooldown ends the current cooldown period and attempts to reconnect.
func (dm *DeviceManager) EndCooldown(stop <-chan struct{}) {
	Logger().Info("device cooldown period ended")
	dm.mu.Lock()
	dm.inCooldown = false
	dm.mu.Unlock()
	if err := dm.ForceReconnect(stop); err != nil {
		Logger().Error("reconnection after cooldown failed", zap.Error(err))
	}
}

// CooldownChannel returns the cooldown timer channel for select statements.
func (dm *DeviceManager) CooldownChannel() <-chan time.Time {
	return dm.cooldownTimer.C
}
