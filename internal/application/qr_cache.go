package application

import (
	"sync"
	"time"

	"github.com/example/geo-attendance/internal/attendance"
)

// qrCache holds the rendered code of the current session so that admin pages
// polling /qr.png do not re-encode it. Only one session is live at a time, so
// the cache is a single slot that a new session or a new link overwrites.
type qrCache struct {
	mu  sync.Mutex
	now func() time.Time

	sessionID string
	link      string
	png       []byte
	expiresAt time.Time
}

func newQRCache(now func() time.Time) *qrCache {
	if now == nil {
		now = time.Now
	}
	return &qrCache{now: now}
}

// Get returns a copy of the code for session and link. The slot is dropped
// once the session has expired.
func (c *qrCache) Get(sessionID, link string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.png == nil || c.sessionID != sessionID || c.link != link {
		return nil, false
	}
	if c.now().After(c.expiresAt) {
		c.resetLocked()
		return nil, false
	}
	return clonePNG(c.png), true
}

// Store replaces the slot with the code rendered for session.
func (c *qrCache) Store(session attendance.Session, link string, png []byte) {
	if c == nil || len(png) == 0 {
		return
	}
	cloned := clonePNG(png)

	c.mu.Lock()
	c.sessionID = session.ID
	c.link = link
	c.png = cloned
	c.expiresAt = session.ExpiresAt
	c.mu.Unlock()
}

// Invalidate empties the slot.
func (c *qrCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
}

func (c *qrCache) resetLocked() {
	c.sessionID, c.link, c.png, c.expiresAt = "", "", nil, time.Time{}
}

func clonePNG(png []byte) []byte {
	if len(png) == 0 {
		return nil
	}
	out := make([]byte, len(png))
	copy(out, png)
	return out
}
