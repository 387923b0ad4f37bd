package attendance

import (
	"strings"
	"testing"
	"time"
)

func TestExportTabular(t *testing.T) {
	created := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	session := Session{ID: "s-1", CreatedAt: created, ExpiresAt: created.Add(SessionWindow)}
	records := []Record{
		{Name: "Asha", RollNumber: "21", SubmittedAt: created.Add(15 * time.Second)},
		{Name: "Ravi, K", RollNumber: "22", SubmittedAt: created.Add(75 * time.Second)},
	}

	t.Run("utc", func(t *testing.T) {
		out, err := ExportTabular(session, records, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := strings.Join([]string{
			"QR Generated At,2024-09-02 09:00:00",
			"QR Expires At,2024-09-02 09:02:00",
			"Attendance Window,2 Minutes",
			"",
			"Name,Roll No,Time",
			"Asha,21,09:00:15",
			`"Ravi, K",22,09:01:15`,
			"",
		}, "\n")
		if string(out) != want {
			t.Fatalf("unexpected export:\n%s\nwant:\n%s", out, want)
		}
	})

	t.Run("presentation location", func(t *testing.T) {
		loc := time.FixedZone("IST", 5*3600+1800)
		out, err := ExportTabular(session, records[:1], loc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(string(out), "QR Generated At,2024-09-02 14:30:00\n") {
			t.Fatalf("expected local generation time, got:\n%s", out)
		}
		if !strings.HasSuffix(string(out), "Asha,21,14:30:15\n") {
			t.Fatalf("expected local record time, got:\n%s", out)
		}
	})

	t.Run("empty log keeps header", func(t *testing.T) {
		out, err := ExportTabular(session, nil, time.UTC)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasSuffix(string(out), "\n\nName,Roll No,Time\n") {
			t.Fatalf("unexpected export:\n%s", out)
		}
	})
}
