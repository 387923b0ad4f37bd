package testfixtures

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestServiceFactoryNewAttendanceService(t *testing.T) {
	factory := NewServiceFactory()
	svc := factory.NewAttendanceService(AttendanceServiceDeps{})

	ticket, err := svc.CreateSession(context.Background(), CreateInput(Classroom(), "http://class.local"))
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	if ticket.Session.ID != "session-1" {
		t.Fatalf("expected generated ID session-1, got %q", ticket.Session.ID)
	}
	if !ticket.Session.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), ticket.Session.CreatedAt)
	}
	if !strings.HasPrefix(string(ticket.QRCode), "png:http://class.local/student.html?session=session-1") {
		t.Fatalf("unexpected rendered payload %q", ticket.QRCode)
	}

	student := NewStudentFixture()
	if _, err := svc.MarkAttendance(context.Background(), student.Input(ticket.Session.ID)); err != nil {
		t.Fatalf("expected fixture student to be accepted, got %v", err)
	}

	factory.Clock.Advance(3 * time.Minute)
	late := NewStudentFixture()
	if _, err := svc.MarkAttendance(context.Background(), late.Input(ticket.Session.ID)); err == nil {
		t.Fatal("expected submission after the window to be rejected")
	}
}

func TestNorthOfDistance(t *testing.T) {
	origin := Classroom()
	moved := NorthOf(origin, 55.597, 5)
	if diff := moved.Latitude - origin.Latitude; diff < 0.000499 || diff > 0.000501 {
		t.Fatalf("expected ~0.0005 degrees of latitude, got %v", diff)
	}
	if moved.Accuracy != 5 || moved.Longitude != origin.Longitude {
		t.Fatalf("unexpected location %+v", moved)
	}
}
