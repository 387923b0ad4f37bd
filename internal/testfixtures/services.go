package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/geo-attendance/internal/application"
	"github.com/example/geo-attendance/internal/attendance"
)

// ServiceFactory assists tests with constructing attendance services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("session"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("session")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// NewManager builds a session manager driven by the factory clock and
// identifier generator.
func (f *ServiceFactory) NewManager() *attendance.Manager {
	return attendance.NewManager(f.IDGenerator.NextFunc(), f.Clock.NowFunc())
}

// AttendanceServiceDeps captures dependencies for constructing an attendance service.
type AttendanceServiceDeps struct {
	Manager  *attendance.Manager
	Renderer application.QRRenderer
	Sink     application.RecordSink
	Mailer   application.ReportMailer
	Options  application.AttendanceOptions
	Logger   *slog.Logger
}

// NewAttendanceService builds an attendance service using the supplied
// dependencies combined with the factory defaults. A nil renderer is replaced
// by StaticRenderer.
func (f *ServiceFactory) NewAttendanceService(deps AttendanceServiceDeps) *application.AttendanceService {
	manager := deps.Manager
	if manager == nil {
		manager = f.NewManager()
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = StaticRenderer{}
	}
	return application.NewAttendanceServiceWithLogger(
		manager,
		renderer,
		deps.Sink,
		deps.Mailer,
		deps.Options,
		deps.Logger,
	)
}

// StaticRenderer returns a fixed payload prefixed to the encoded content so
// tests can assert on what would have been encoded.
type StaticRenderer struct{}

// Render implements application.QRRenderer.
func (StaticRenderer) Render(content string) ([]byte, error) {
	return []byte("png:" + content), nil
}
