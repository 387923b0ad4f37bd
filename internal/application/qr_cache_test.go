package application

import (
	"testing"
	"time"

	"github.com/example/geo-attendance/internal/attendance"
)

func cachedSession(id string, created time.Time) attendance.Session {
	return attendance.Session{ID: id, CreatedAt: created, ExpiresAt: created.Add(attendance.SessionWindow)}
}

func TestQRCache(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	const link = "http://host/student.html?session=s-1"

	t.Run("returns independent copies", func(t *testing.T) {
		current := created
		cache := newQRCache(func() time.Time { return current })

		original := []byte("png-bytes")
		cache.Store(cachedSession("s-1", created), link, original)
		original[0] = 'X'

		cached, ok := cache.Get("s-1", link)
		if !ok || string(cached) != "png-bytes" {
			t.Fatalf("expected unchanged cached image, got %q (hit=%v)", cached, ok)
		}
		cached[0] = 'Y'
		again, _ := cache.Get("s-1", link)
		if string(again) != "png-bytes" {
			t.Fatalf("expected independent copy, got %q", again)
		}
	})

	t.Run("misses for another session or link", func(t *testing.T) {
		cache := newQRCache(func() time.Time { return created })
		cache.Store(cachedSession("s-1", created), link, []byte("png"))

		if _, ok := cache.Get("s-2", link); ok {
			t.Fatal("expected miss for a different session")
		}
		if _, ok := cache.Get("s-1", "https://host/student.html?session=s-1"); ok {
			t.Fatal("expected miss for a different link")
		}
	})

	t.Run("new session overwrites the slot", func(t *testing.T) {
		cache := newQRCache(func() time.Time { return created })
		cache.Store(cachedSession("s-1", created), link, []byte("one"))
		cache.Store(cachedSession("s-2", created), "http://host/student.html?session=s-2", []byte("two"))

		if _, ok := cache.Get("s-1", link); ok {
			t.Fatal("expected previous session to be gone")
		}
		if got, ok := cache.Get("s-2", "http://host/student.html?session=s-2"); !ok || string(got) != "two" {
			t.Fatalf("expected new session code, got %q (hit=%v)", got, ok)
		}
	})

	t.Run("drops the slot after session expiry", func(t *testing.T) {
		current := created
		cache := newQRCache(func() time.Time { return current })
		cache.Store(cachedSession("s-1", created), link, []byte("png"))

		current = created.Add(attendance.SessionWindow)
		if _, ok := cache.Get("s-1", link); !ok {
			t.Fatal("expected hit at the expiry instant")
		}
		current = current.Add(time.Second)
		if _, ok := cache.Get("s-1", link); ok {
			t.Fatal("expected miss after expiry")
		}
	})

	t.Run("invalidate empties the slot", func(t *testing.T) {
		cache := newQRCache(nil)
		cache.Store(cachedSession("s-1", time.Now()), link, []byte("png"))
		cache.Invalidate()
		if _, ok := cache.Get("s-1", link); ok {
			t.Fatal("expected cache to be empty after invalidation")
		}
	})
}
