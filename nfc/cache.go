package nfc

import (
	"sync"
	"time"
)

// PresenceCache tracks which tags are currently in the field so each
// presentation is reported once.
//
// A UID stays present while it keeps showing up in polls. Once it has been
// absent for longer than the timeout it is forgotten, and its next
// appearance counts as a new presentation.
type PresenceCache struct {
	clock    Clock
	timeout  time.Duration
	lastSeen map[string]time.Time // map[UID]last poll that saw it
	lastUID  string               // Most recent new presentation
	mu       sync.RWMutex
}

// NewPresenceCache creates an empty cache. A non-positive timeout uses
// PresenceTimeout.
func NewPresenceCache(clock Clock, timeout time.Duration) *PresenceCache {
	if clock == nil {
		clock = NewRealClock()
	}
	if timeout <= 0 {
		timeout = PresenceTimeout
	}
	return &PresenceCache{
		clock:    clock,
		timeout:  timeout,
		lastSeen: make(map[string]time.Time),
	}
}

// Observe records the UIDs seen in one poll and returns those that were not
// already present, in input order. Entries that have been absent for longer
// than the timeout are dropped.
func (c *PresenceCache) Observe(uids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.expireLocked(now)

	var arrived []string
	for _, uid := range uids {
		if uid == "" {
			continue
		}
		if _, present := c.lastSeen[uid]; !present {
			arrived = append(arrived, uid)
			c.lastUID = uid
		}
		c.lastSeen[uid] = now
	}
	return arrived
}

// Expire drops tags not seen within the timeout. The watcher calls it on
// polls that return no tags at all.
func (c *PresenceCache) Expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.clock.Now())
}

func (c *PresenceCache) expireLocked(now time.Time) {
	for uid, seen := range c.lastSeen {
		if now.Sub(seen) > c.timeout {
			delete(c.lastSeen, uid)
		}
	}
}

// IsPresent reports whether uid is currently considered in the field.
func (c *PresenceCache) IsPresent(uid string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen, ok := c.lastSeen[uid]
	return ok && c.clock.Now().Sub(seen) <= c.timeout
}

// AnyPresent reports whether any tag is in the field.
func (c *PresenceCache) AnyPresent() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.clock.Now()
	for _, seen := range c.lastSeen {
		if now.Sub(seen) <= c.timeout {
			return true
		}
	}
	return false
}

// LastUID returns the UID of the most recent new presentation.
func (c *PresenceCache) LastUID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUID
}

// Clear forgets every tag.
func (c *PresenceCache) Clear() {
	c.mu.Lock()
	c.lastSeen = make(map[string]time.Time)
	c.lastUID = ""
	c.mu.Unlock()
}
