package attendance

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/example/geo-attendance/internal/geo"
)

type manualClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var classroom = Location{Latitude: 12.9716, Longitude: 77.5946, Accuracy: 10}

// northOf returns a location the given number of meters due north of origin.
func northOf(origin Location, meters, accuracy float64) Location {
	degrees := meters / (geo.EarthRadiusMeters * math.Pi / 180)
	return Location{Latitude: origin.Latitude + degrees, Longitude: origin.Longitude, Accuracy: accuracy}
}

func newTestManager(t *testing.T) (*Manager, *manualClock) {
	t.Helper()
	clock := &manualClock{current: time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)}
	return NewManager(sequentialIDs("session"), clock.Now), clock
}

func TestManager_Create(t *testing.T) {
	t.Run("sets window and origin", func(t *testing.T) {
		mgr, clock := newTestManager(t)

		session, err := mgr.Create(classroom)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session.ID != "session-1" {
			t.Fatalf("unexpected session id %q", session.ID)
		}
		if !session.CreatedAt.Equal(clock.Now()) {
			t.Fatalf("expected created at %v, got %v", clock.Now(), session.CreatedAt)
		}
		if got := session.ExpiresAt.Sub(session.CreatedAt); got != SessionWindow {
			t.Fatalf("expected window %v, got %v", SessionWindow, got)
		}
		if session.Origin != classroom {
			t.Fatalf("unexpected origin %+v", session.Origin)
		}
		if session.DeviceCount() != 0 {
			t.Fatalf("expected empty device set, got %d", session.DeviceCount())
		}
	})

	t.Run("rejects non numeric coordinates", func(t *testing.T) {
		mgr, _ := newTestManager(t)

		_, err := mgr.Create(Location{Latitude: math.NaN(), Longitude: 77.5, Accuracy: 5})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if _, ok := mgr.Current(); ok {
			t.Fatal("expected no session after rejected create")
		}
	})

	t.Run("new session clears log and devices", func(t *testing.T) {
		mgr, clock := newTestManager(t)

		first, err := mgr.Create(classroom)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		clock.Advance(10 * time.Second)
		if _, _, err := mgr.Submit(Submission{SessionID: first.ID, DeviceID: "d1", Name: "Asha", RollNumber: "1", Location: classroom}); err != nil {
			t.Fatalf("submit: %v", err)
		}

		second, err := mgr.Create(classroom)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if second.ID == first.ID {
			t.Fatal("expected a fresh session id")
		}
		if records := mgr.Records(); len(records) != 0 {
			t.Fatalf("expected empty log, got %d records", len(records))
		}
		current, _ := mgr.Current()
		if current.HasDevice("d1") {
			t.Fatal("expected device set to be cleared")
		}

		if _, _, err := mgr.Submit(Submission{SessionID: first.ID, DeviceID: "d2", Location: classroom}); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("expected old session id to be rejected, got %v", err)
		}
		if _, _, err := mgr.Submit(Submission{SessionID: second.ID, DeviceID: "d1", Location: classroom}); err != nil {
			t.Fatalf("expected device to be usable again, got %v", err)
		}
	})
}

func TestManager_Current(t *testing.T) {
	mgr, _ := newTestManager(t)

	if _, ok := mgr.Current(); ok {
		t.Fatal("expected no session before create")
	}

	created, err := mgr.Create(classroom)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	current, ok := mgr.Current()
	if !ok || current.ID != created.ID {
		t.Fatalf("expected current session %q, got %+v (ok=%v)", created.ID, current, ok)
	}
}

func TestManager_Submit(t *testing.T) {
	t.Run("scenario", func(t *testing.T) {
		mgr, clock := newTestManager(t)
		session, err := mgr.Create(classroom)
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		clock.Advance(30 * time.Second)
		sub := Submission{SessionID: session.ID, DeviceID: "d1", Name: "Asha", RollNumber: "21", Location: classroom}
		record, decision, err := mgr.Submit(sub)
		if err != nil {
			t.Fatalf("expected accept, got %v", err)
		}
		if decision.Distance != 0 {
			t.Fatalf("expected zero distance, got %v", decision.Distance)
		}
		if !record.SubmittedAt.Equal(clock.Now()) || record.Name != "Asha" || record.RollNumber != "21" {
			t.Fatalf("unexpected record %+v", record)
		}

		_, decision, err = mgr.Submit(sub)
		if !errors.Is(err, ErrDuplicateDevice) {
			t.Fatalf("expected ErrDuplicateDevice, got %v", err)
		}
		if decision.Reason != ReasonDuplicateDevice {
			t.Fatalf("unexpected reason %q", decision.Reason)
		}

		clock.Advance(100 * time.Second)
		sub.DeviceID = "d2"
		if _, _, err := mgr.Submit(sub); !errors.Is(err, ErrExpired) {
			t.Fatalf("expected ErrExpired, got %v", err)
		}

		if records := mgr.Records(); len(records) != 1 {
			t.Fatalf("expected exactly one record, got %d", len(records))
		}
	})

	t.Run("without session", func(t *testing.T) {
		mgr, _ := newTestManager(t)
		_, _, err := mgr.Submit(Submission{SessionID: "anything", DeviceID: "d1", Location: classroom})
		if !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("expected ErrInvalidSession, got %v", err)
		}
	})

	t.Run("invalid location", func(t *testing.T) {
		mgr, _ := newTestManager(t)
		session, _ := mgr.Create(classroom)
		_, _, err := mgr.Submit(Submission{SessionID: session.ID, DeviceID: "d1", Location: Location{Latitude: math.Inf(1), Longitude: 1}})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("out of range carries rounded distance", func(t *testing.T) {
		mgr, _ := newTestManager(t)
		session, _ := mgr.Create(Location{Latitude: classroom.Latitude, Longitude: classroom.Longitude, Accuracy: 5})

		_, _, err := mgr.Submit(Submission{SessionID: session.ID, DeviceID: "far", Location: northOf(classroom, 100, 5)})
		var rejection *RejectionError
		if !errors.As(err, &rejection) {
			t.Fatalf("expected RejectionError, got %v", err)
		}
		if rejection.Reason != ReasonOutOfRange || rejection.DistanceMeters != 90 {
			t.Fatalf("unexpected rejection %+v", rejection)
		}
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("expected ErrOutOfRange, got %v", err)
		}

		current, _ := mgr.Current()
		if current.HasDevice("far") {
			t.Fatal("rejected device must not be marked as used")
		}
	})

	t.Run("concurrent submissions from one device", func(t *testing.T) {
		mgr, _ := newTestManager(t)
		session, _ := mgr.Create(classroom)

		const workers = 64
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
		)
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, _, err := mgr.Submit(Submission{
					SessionID: session.ID,
					DeviceID:  "shared",
					Name:      fmt.Sprintf("student-%d", i),
					Location:  classroom,
				})
				if err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				} else if !errors.Is(err, ErrDuplicateDevice) {
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		if accepted != 1 {
			t.Fatalf("expected exactly one accepted submission, got %d", accepted)
		}
		if records := mgr.Records(); len(records) != 1 {
			t.Fatalf("expected one record, got %d", len(records))
		}
	})
}

func TestManager_RecordsOrder(t *testing.T) {
	mgr, clock := newTestManager(t)
	session, _ := mgr.Create(classroom)

	for i := 1; i <= 5; i++ {
		clock.Advance(time.Second)
		_, _, err := mgr.Submit(Submission{
			SessionID:  session.ID,
			DeviceID:   fmt.Sprintf("device-%d", i),
			Name:       fmt.Sprintf("student-%d", i),
			RollNumber: fmt.Sprint(i),
			Location:   classroom,
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	records := mgr.Records()
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i, record := range records {
		if want := fmt.Sprintf("student-%d", i+1); record.Name != want {
			t.Fatalf("record %d: expected %q, got %q", i, want, record.Name)
		}
	}

	records[0].Name = "mutated"
	if mgr.Records()[0].Name != "student-1" {
		t.Fatal("Records must return a copy")
	}
}

func TestManager_Export(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		mgr, _ := newTestManager(t)
		_, _, err := mgr.Export(ExportAnytime)
		if !errors.Is(err, ErrNoSession) || !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("expected ErrNoSession, got %v", err)
		}
	})

	t.Run("anytime allows active session", func(t *testing.T) {
		mgr, clock := newTestManager(t)
		session, _ := mgr.Create(classroom)
		clock.Advance(5 * time.Second)
		_, _, _ = mgr.Submit(Submission{SessionID: session.ID, DeviceID: "d1", Name: "Asha", Location: classroom})

		exported, records, err := mgr.Export(ExportAnytime)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exported.ID != session.ID || len(records) != 1 {
			t.Fatalf("unexpected export %+v %+v", exported, records)
		}
	})

	t.Run("after expiry gates active session", func(t *testing.T) {
		mgr, clock := newTestManager(t)
		_, _ = mgr.Create(classroom)

		_, _, err := mgr.Export(ExportAfterExpiry)
		if !errors.Is(err, ErrSessionStillActive) || !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrSessionStillActive, got %v", err)
		}

		clock.Advance(SessionWindow)
		if _, _, err := mgr.Export(ExportAfterExpiry); !errors.Is(err, ErrSessionStillActive) {
			t.Fatalf("expected export to stay gated at the exact expiry instant, got %v", err)
		}

		clock.Advance(time.Second)
		if _, _, err := mgr.Export(ExportAfterExpiry); err != nil {
			t.Fatalf("expected export after expiry, got %v", err)
		}
	})
}

func TestParseExportPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    ExportPolicy
		wantErr bool
	}{
		{in: "", want: ExportAnytime},
		{in: "anytime", want: ExportAnytime},
		{in: " AFTER_EXPIRY ", want: ExportAfterExpiry},
		{in: "never", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExportPolicy(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSessionExpiry(t *testing.T) {
	created := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	session := Session{CreatedAt: created, ExpiresAt: created.Add(SessionWindow)}

	tests := []struct {
		name      string
		at        time.Time
		expired   bool
		remaining time.Duration
	}{
		{name: "at creation", at: created, remaining: SessionWindow},
		{name: "mid window", at: created.Add(30 * time.Second), remaining: 90 * time.Second},
		{name: "exactly at expiry", at: created.Add(SessionWindow), remaining: 0},
		{name: "after expiry", at: created.Add(SessionWindow + time.Nanosecond), expired: true, remaining: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := session.IsExpired(tt.at); got != tt.expired {
				t.Fatalf("IsExpired = %v, want %v", got, tt.expired)
			}
			if got := session.Remaining(tt.at); got != tt.remaining {
				t.Fatalf("Remaining = %v, want %v", got, tt.remaining)
			}
		})
	}
}
