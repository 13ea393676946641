package nfc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TagHandler is invoked once per tag presentation. It runs synchronously on
// the watcher goroutine; the next poll waits for it to return.
type TagHandler func(ctx context.Context, tag Tag)

// WatcherOptions configures a Watcher. Zero values select defaults.
type WatcherOptions struct {
	PollInterval time.Duration
	// PresenceTimeout is how long a tag may vanish from polls before its
	// next appearance counts as a new presentation.
	PresenceTimeout time.Duration
	Clock           Clock
	// OnStatus receives device status changes. Called from the watcher
	// goroutine.
	OnStatus func(DeviceStatus)
}

// Watcher polls a device and hands every newly presented tag to a handler
// exactly once. A tag resting on the reader is not handled again until it
// has left the field.
type Watcher struct {
	dm       *DeviceManager
	presence *PresenceCache
	clock    Clock
	interval time.Duration
	onStatus func(DeviceStatus)

	retryCount  int
	lastConnect time.Time

	statusMux sync.RWMutex
	status    DeviceStatus
}

// NewWatcher creates a Watcher over dm.
func NewWatcher(dm *DeviceManager, opts WatcherOptions) *Watcher {
	if opts.Clock == nil {
		opts.Clock = NewRealClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollingInterval
	}
	return &Watcher{
		dm:       dm,
		presence: NewPresenceCache(opts.Clock, opts.PresenceTimeout),
		clock:    opts.Clock,
		interval: opts.PollInterval,
		onStatus: opts.OnStatus,
		status:   DeviceStatus{Message: "Not connected"},
	}
}

// Status returns the last reported device status.
func (w *Watcher) Status() DeviceStatus {
	w.statusMux.RLock()
	defer w.statusMux.RUnlock()
	return w.status
}

// Run polls until ctx is cancelled, then closes the device. It returns
// ctx.Err().
func (w *Watcher) Run(ctx context.Context, handler TagHandler) error {
	log := Logger()
	log.Info("watcher started", zap.Duration("poll_interval", w.interval))

	ticker := w.clock.NewTicker(w.interval)
	defer func() {
		ticker.Stop()
		w.dm.Close()
		w.setStatus(DeviceStatus{Message: "Stopped"})
		log.Info("watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.dm.CooldownChannel():
			w.dm.EndCooldown(ctx.Done())
			w.setStatus(w.dm.Status())

		case <-ticker.C():
			if err := w.Poll(ctx, handler); err != nil && ctx.Err() == nil {
				log.Debug("poll failed", zap.Error(err))
			}
		}
	}
}

// Poll performs a single poll: it connects the device if needed, lists the
// tags in the field and invokes handler for each new presentation.
func (w *Watcher) Poll(ctx context.Context, handler TagHandler) error {
	dev := w.dm.Device()
	if dev == nil {
		if w.dm.InCooldown() {
			return nil
		}
		now := w.clock.Now()
		if !w.lastConnect.IsZero() && now.Sub(w.lastConnect) < DeviceCheckInterval {
			return nil
		}
		w.lastConnect = now

		if err := w.dm.TryConnect(); err != nil {
			w.setStatus(DeviceStatus{Message: fmt.Sprintf("Connection failed: %v", err)})
			return err
		}
		w.retryCount = 0
		w.setStatus(w.dm.Status())
		dev = w.dm.Device()
	}

	tags, err := dev.GetTags()
	if err != nil {
		if IsNoCardError(err) {
			w.presence.Expire()
			w.setStatus(w.dm.Status())
			return nil
		}
		w.retryCount, _ = w.dm.HandleError(err, w.retryCount, ctx.Done())
		w.setStatus(w.dm.Status())
		return err
	}
	w.retryCount = 0

	byUID := make(map[string]Tag, len(tags))
	uids := make([]string, 0, len(tags))
	for _, tag := range tags {
		uid := tag.UID()
		if _, dup := byUID[uid]; dup {
			continue
		}
		byUID[uid] = tag
		uids = append(uids, uid)
	}

	arrived := w.presence.Observe(uids)
	w.setStatus(w.dm.Status())

	for _, uid := range arrived {
		if err := ctx.Err(); err != nil {
			return err
		}
		tag := byUID[uid]
		Logger().Info("tag presented", zap.String("uid", uid), zap.String("type", tag.Type()))
		handler(ctx, tag)
	}
	return nil
}

func (w *Watcher) setStatus(status DeviceStatus) {
	status.CardPresent = w.presence.AnyPresent()
	if status.CardPresent && status.Connected {
		if uid := w.presence.LastUID(); uid != "" {
			status.Message = fmt.Sprintf("Card detected (UID: %s)", uid)
		}
	}

	w.statusMux.Lock()
	changed := status != w.status
	w.status = status
	w.statusMux.Unlock()

	if changed && w.onStatus != nil {
		w.onStatus(status)
	}
}
