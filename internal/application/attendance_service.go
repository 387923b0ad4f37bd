package application

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/geo-attendance/internal/attendance"
)

const (
	defaultSinkTimeout = 5 * time.Second
	exportFilename     = "attendance.csv"
	exportContentType  = "text/csv"
	studentPagePath    = "/student.html"
)

// QRRenderer encodes content as a PNG image.
type QRRenderer interface {
	Render(content string) ([]byte, error)
}

// ReportMailer delivers an export to its recipients.
type ReportMailer interface {
	SendReport(ctx context.Context, report Report) error
}

// AttendanceOptions tunes presentation and delivery.
type AttendanceOptions struct {
	// PublicBaseURL overrides the request derived base of the student link.
	PublicBaseURL string
	ExportPolicy  attendance.ExportPolicy
	// Location is used to render export timestamps. Nil means UTC.
	Location    *time.Location
	SinkTimeout time.Duration
	// History serves stored records. Nil disables History.
	History RecordHistory
}

// AttendanceService orchestrates session creation, submissions and exports
// around an attendance.Manager.
type AttendanceService struct {
	manager  *attendance.Manager
	renderer QRRenderer
	sink     RecordSink
	mailer   ReportMailer
	options  AttendanceOptions
	logger   *slog.Logger
	codes    *qrCache

	deliveries sync.WaitGroup
}

// NewAttendanceService constructs a service with the provided collaborators.
// Sink and mailer may be nil.
func NewAttendanceService(manager *attendance.Manager, renderer QRRenderer, sink RecordSink, mailer ReportMailer, options AttendanceOptions) *AttendanceService {
	return NewAttendanceServiceWithLogger(manager, renderer, sink, mailer, options, nil)
}

// NewAttendanceServiceWithLogger constructs a service with a specified logger.
func NewAttendanceServiceWithLogger(manager *attendance.Manager, renderer QRRenderer, sink RecordSink, mailer ReportMailer, options AttendanceOptions, logger *slog.Logger) *AttendanceService {
	if manager == nil {
		manager = attendance.NewManager(nil, nil)
	}
	if options.ExportPolicy == "" {
		options.ExportPolicy = attendance.ExportAnytime
	}
	if options.Location == nil {
		options.Location = time.UTC
	}
	if options.SinkTimeout <= 0 {
		options.SinkTimeout = defaultSinkTimeout
	}
	options.PublicBaseURL = strings.TrimRight(strings.TrimSpace(options.PublicBaseURL), "/")

	return &AttendanceService{
		manager:  manager,
		renderer: renderer,
		sink:     sink,
		mailer:   mailer,
		options:  options,
		logger:   defaultLogger(logger),
		codes:    newQRCache(manager.Now),
	}
}

func (s *AttendanceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AttendanceService", operation, attrs...)
}

// MailerConfigured reports whether EmailExport can succeed.
func (s *AttendanceService) MailerConfigured() bool {
	return s != nil && s.mailer != nil
}

// CreateSession starts a new session at the admin position and renders its code.
// When rendering fails the session still exists and the ticket carries it
// alongside the error.
func (s *AttendanceService) CreateSession(ctx context.Context, input CreateSessionInput) (ticket SessionTicket, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateSession")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"session_id", ticket.Session.ID,
			"expires_at", ticket.Session.ExpiresAt,
		).InfoContext(ctx, "session created")
	}()

	origin, vErr := locationFromInput(input.Latitude, input.Longitude, input.Accuracy)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	ticket.Session, err = s.manager.Create(origin)
	if err != nil {
		return
	}
	s.codes.Invalidate()

	ticket.URL = s.studentURL(input.BaseURL, ticket.Session.ID)
	ticket.QRCode, err = s.render(ticket.Session, ticket.URL)
	if err != nil {
		return
	}
	ticket.QRDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(ticket.QRCode)
	return
}

// MarkAttendance validates a submission against the current session and
// records it when accepted. Accepted records are handed to the sink in the
// background; sink failures never change the outcome.
func (s *AttendanceService) MarkAttendance(ctx context.Context, input MarkAttendanceInput) (record attendance.Record, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "MarkAttendance",
		"session_id", input.SessionID,
		"device_digest", DeviceDigest(input.DeviceID),
	)
	var decision attendance.Decision
	defer func() {
		if err != nil {
			level := slog.LevelWarn
			if ErrorKind(err) == "unexpected" {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "attendance rejected",
				"error", err,
				"error_kind", ErrorKind(err),
				"effective_distance", decision.EffectiveDistance,
			)
			return
		}
		logger.With(
			"roll_number", record.RollNumber,
			"distance", decision.Distance,
		).InfoContext(ctx, "attendance recorded")
	}()

	location, vErr := locationFromInput(input.Latitude, input.Longitude, input.Accuracy)
	if strings.TrimSpace(input.DeviceID) == "" {
		vErr.add("device_id", "device identifier is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	record, decision, err = s.manager.Submit(attendance.Submission{
		SessionID:  strings.TrimSpace(input.SessionID),
		DeviceID:   input.DeviceID,
		Name:       strings.TrimSpace(input.Name),
		RollNumber: strings.TrimSpace(input.RollNumber),
		Location:   location,
	})
	if err != nil {
		return
	}

	s.deliver(ctx, logger, SinkRecord{
		SessionID:      record.SessionID,
		Name:           record.Name,
		RollNumber:     record.RollNumber,
		DeviceDigest:   DeviceDigest(record.DeviceID),
		DistanceMeters: record.Distance,
		SubmittedAt:    record.SubmittedAt,
	})
	return
}

// Status reports the current session or attendance.ErrNoSession.
func (s *AttendanceService) Status(ctx context.Context) (SessionStatus, error) {
	if s == nil {
		return SessionStatus{}, fmt.Errorf("AttendanceService is nil")
	}
	session, ok := s.manager.Current()
	if !ok {
		return SessionStatus{}, attendance.ErrNoSession
	}
	now := s.manager.Now()
	return SessionStatus{
		SessionID:   session.ID,
		GeneratedAt: session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
		Expired:     session.IsExpired(now),
		Remaining:   session.Remaining(now),
		Attendees:   session.DeviceCount(),
	}, nil
}

// CurrentQRCode renders the code for the current session.
func (s *AttendanceService) CurrentQRCode(ctx context.Context, baseURL string) (png []byte, err error) {
	if s == nil {
		return nil, fmt.Errorf("AttendanceService is nil")
	}
	session, ok := s.manager.Current()
	if !ok {
		err = attendance.ErrNoSession
		return
	}
	png, err = s.render(session, s.studentURL(baseURL, session.ID))
	if err != nil {
		s.loggerWith(ctx, "CurrentQRCode", "session_id", session.ID).
			ErrorContext(ctx, "failed to render qr code", "error", err, "error_kind", ErrorKind(err))
	}
	return
}

// Export renders the attendance log of the current session subject to the
// configured export policy.
func (s *AttendanceService) Export(ctx context.Context) (export Export, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Export", "policy", string(s.options.ExportPolicy))
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "export refused", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"session_id", export.SessionID,
			"records", export.Records,
		).InfoContext(ctx, "attendance exported")
	}()

	session, records, err := s.manager.Export(s.options.ExportPolicy)
	if err != nil {
		return
	}

	body, err := attendance.ExportTabular(session, records, s.options.Location)
	if err != nil {
		return
	}

	export = Export{
		Filename:    exportFilename,
		ContentType: exportContentType,
		Body:        body,
		SessionID:   session.ID,
		GeneratedAt: session.CreatedAt,
		Records:     len(records),
	}
	return
}

// EmailExport renders the export and hands it to the report mailer.
func (s *AttendanceService) EmailExport(ctx context.Context) (export Export, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}
	if s.mailer == nil {
		err = ErrMailerNotConfigured
		return
	}

	export, err = s.Export(ctx)
	if err != nil {
		return
	}

	logger := s.loggerWith(ctx, "EmailExport", "session_id", export.SessionID)
	generated := export.GeneratedAt.In(s.options.Location).Format("2006-01-02 15:04")
	report := Report{
		Subject: "Attendance report " + generated,
		Summary: fmt.Sprintf("%d attendee(s) recorded for the session generated at %s.", export.Records, generated),
		Export:  export,
	}
	if err = s.mailer.SendReport(ctx, report); err != nil {
		err = fmt.Errorf("send report: %w", err)
		logger.ErrorContext(ctx, "failed to e-mail export", "error", err, "error_kind", ErrorKind(err))
		return
	}
	logger.InfoContext(ctx, "export e-mailed", "records", export.Records)
	return
}

// HistoryConfigured reports whether History can succeed.
func (s *AttendanceService) HistoryConfigured() bool {
	return s != nil && s.options.History != nil
}

// History returns the records the durable store holds for sessionID, or for
// the current session when sessionID is empty. Unlike Export it also serves
// sessions that a newer one has replaced.
func (s *AttendanceService) History(ctx context.Context, sessionID string) (history SessionHistory, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}
	if s.options.History == nil {
		err = ErrHistoryNotConfigured
		return
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		session, ok := s.manager.Current()
		if !ok {
			err = attendance.ErrNoSession
			return
		}
		sessionID = session.ID
	}

	records, err := s.options.History.ListRecords(ctx, sessionID)
	if err != nil {
		err = fmt.Errorf("list records: %w", err)
		s.loggerWith(ctx, "History", "session_id", sessionID).
			ErrorContext(ctx, "failed to read record history", "error", err, "error_kind", ErrorKind(err))
		return
	}
	history = SessionHistory{SessionID: sessionID, Records: records}
	return
}

// Drain waits for in-flight sink deliveries or until ctx is done.
func (s *AttendanceService) Drain(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.deliveries.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain record sinks: %w", ctx.Err())
	}
}

func (s *AttendanceService) deliver(ctx context.Context, logger *slog.Logger, record SinkRecord) {
	if s.sink == nil {
		return
	}

	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()

		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.options.SinkTimeout)
		defer cancel()

		if err := s.sink.AppendRecord(sinkCtx, record); err != nil {
			logger.ErrorContext(sinkCtx, "failed to deliver attendance record", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(sinkCtx, "attendance record delivered")
	}()
}

func (s *AttendanceService) render(session attendance.Session, content string) ([]byte, error) {
	if s.renderer == nil {
		return nil, ErrRendererNotConfigured
	}
	if png, ok := s.codes.Get(session.ID, content); ok {
		return png, nil
	}
	png, err := s.renderer.Render(content)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	s.codes.Store(session, content, png)
	return png, nil
}

func (s *AttendanceService) studentURL(requestBase, sessionID string) string {
	base := s.options.PublicBaseURL
	if base == "" {
		base = strings.TrimRight(strings.TrimSpace(requestBase), "/")
	}
	query := url.Values{"session": []string{sessionID}}
	return base + studentPagePath + "?" + query.Encode()
}

func locationFromInput(lat, lon, acc *float64) (attendance.Location, *ValidationError) {
	vErr := &ValidationError{}
	checkCoordinate(vErr, "lat", lat)
	checkCoordinate(vErr, "lon", lon)
	checkCoordinate(vErr, "accuracy", acc)
	if vErr.HasErrors() {
		return attendance.Location{}, vErr
	}
	return attendance.Location{Latitude: *lat, Longitude: *lon, Accuracy: *acc}, vErr
}

func checkCoordinate(vErr *ValidationError, field string, value *float64) {
	switch {
	case value == nil:
		vErr.add(field, "is required")
	case math.IsNaN(*value) || math.IsInf(*value, 0):
		vErr.add(field, "must be a finite number")
	}
}
