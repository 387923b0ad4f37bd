package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/geo-attendance/internal/application"
	"github.com/example/geo-attendance/internal/attendance"
)

const maxRequestBody = 1 << 20

type attendanceService interface {
	CreateSession(ctx context.Context, input application.CreateSessionInput) (application.SessionTicket, error)
	MarkAttendance(ctx context.Context, input application.MarkAttendanceInput) (attendance.Record, error)
	Status(ctx context.Context) (application.SessionStatus, error)
	CurrentQRCode(ctx context.Context, baseURL string) ([]byte, error)
	Export(ctx context.Context) (application.Export, error)
	EmailExport(ctx context.Context) (application.Export, error)
	MailerConfigured() bool
	History(ctx context.Context, sessionID string) (application.SessionHistory, error)
	HistoryConfigured() bool
}

// AttendanceHandler serves the admin and student endpoints.
type AttendanceHandler struct {
	service   attendanceService
	responder responder
	logger    *slog.Logger
	location  *time.Location
}

// NewAttendanceHandler constructs the handler. Timestamps in responses are
// rendered in loc; nil means UTC.
func NewAttendanceHandler(service attendanceService, loc *time.Location, logger *slog.Logger) *AttendanceHandler {
	if loc == nil {
		loc = time.UTC
	}
	responder := newResponder(logger)
	return &AttendanceHandler{service: service, responder: responder, logger: responder.logger, location: loc}
}

func (h *AttendanceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return operationLogger(ctx, nil, operation, attrs...)
	}
	return operationLogger(ctx, h.logger, operation, append([]any{"handler", "attendance"}, attrs...)...)
}

// EmailEnabled reports whether POST /download/email should be exposed.
func (h *AttendanceHandler) EmailEnabled() bool {
	return h != nil && h.service != nil && h.service.MailerConfigured()
}

// HistoryEnabled reports whether GET /session/records should be exposed.
func (h *AttendanceHandler) HistoryEnabled() bool {
	return h != nil && h.service != nil && h.service.HistoryConfigured()
}

func (h *AttendanceHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.log(r.Context(), "GenerateQR", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode generate request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	ticket, err := h.service.CreateSession(r.Context(), application.CreateSessionInput{
		Latitude:  req.Lat,
		Longitude: req.Lon,
		Accuracy:  req.Accuracy,
		BaseURL:   requestBaseURL(r),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "GenerateQR", "session_id", ticket.Session.ID).DebugContext(r.Context(), "qr issued")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, generateResponse{
		SessionID:   ticket.Session.ID,
		QR:          ticket.QRDataURL,
		QRURL:       ticket.URL,
		GeneratedAt: h.timestamp(ticket.Session.CreatedAt),
		ExpiresAt:   h.timestamp(ticket.Session.ExpiresAt),
		Window:      attendance.SessionWindowLabel,
	})
}

func (h *AttendanceHandler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req markRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.log(r.Context(), "MarkAttendance", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode attendance request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if _, err := h.service.MarkAttendance(r.Context(), req.toInput()); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, markResponse{Success: true})
}

func (h *AttendanceHandler) Session(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	status, err := h.service.Status(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{
		SessionID:        status.SessionID,
		GeneratedAt:      h.timestamp(status.GeneratedAt),
		ExpiresAt:        h.timestamp(status.ExpiresAt),
		Expired:          status.Expired,
		RemainingSeconds: int64(status.Remaining / time.Second),
		Attendees:        status.Attendees,
	})
}

// Records lists the stored records of the session named by the session_id
// query parameter, defaulting to the current session.
func (h *AttendanceHandler) Records(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	history, err := h.service.History(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := recordsResponse{SessionID: history.SessionID, Records: make([]storedRecord, 0, len(history.Records))}
	for _, record := range history.Records {
		resp.Records = append(resp.Records, storedRecord{
			Name:           record.Name,
			Roll:           record.RollNumber,
			SubmittedAt:    h.timestamp(record.SubmittedAt),
			DistanceMeters: record.DistanceMeters,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *AttendanceHandler) Download(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	export, err := h.service.Export(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Body); err != nil {
		h.log(r.Context(), "Download", "session_id", export.SessionID).ErrorContext(r.Context(), "failed to write export", "error", err)
	}
}

func (h *AttendanceHandler) EmailExport(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	export, err := h.service.EmailExport(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusAccepted, emailResponse{
		Sent:      true,
		SessionID: export.SessionID,
		Records:   export.Records,
	})
}

func (h *AttendanceHandler) QRImage(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	png, err := h.service.CurrentQRCode(r.Context(), requestBaseURL(r))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log(r.Context(), "QRImage").ErrorContext(r.Context(), "failed to write qr image", "error", err)
	}
}

func (h *AttendanceHandler) timestamp(t time.Time) string {
	return t.In(h.location).Format(time.RFC3339)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst)
}

// requestBaseURL rebuilds scheme and host as seen by the client, honoring a
// reverse proxy's X-Forwarded-Proto.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = strings.ToLower(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

type generateRequest struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Accuracy *float64 `json:"accuracy"`
}

type generateResponse struct {
	SessionID   string `json:"session_id"`
	QR          string `json:"qr"`
	QRURL       string `json:"qr_url"`
	GeneratedAt string `json:"generated_at"`
	ExpiresAt   string `json:"expires_at"`
	Window      string `json:"window"`
}

type markRequest struct {
	Name      string   `json:"name"`
	Roll      string   `json:"roll"`
	DeviceID  string   `json:"deviceId"`
	SessionID string   `json:"sessionId"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Accuracy  *float64 `json:"accuracy"`
}

func (req markRequest) toInput() application.MarkAttendanceInput {
	return application.MarkAttendanceInput{
		SessionID:  req.SessionID,
		DeviceID:   req.DeviceID,
		Name:       req.Name,
		RollNumber: req.Roll,
		Latitude:   req.Lat,
		Longitude:  req.Lon,
		Accuracy:   req.Accuracy,
	}
}

type markResponse struct {
	Success bool `json:"success"`
}

type sessionResponse struct {
	SessionID        string `json:"session_id"`
	GeneratedAt      string `json:"generated_at"`
	ExpiresAt        string `json:"expires_at"`
	Expired          bool   `json:"expired"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Attendees        int    `json:"attendees"`
}

type emailResponse struct {
	Sent      bool   `json:"sent"`
	SessionID string `json:"session_id"`
	Records   int    `json:"records"`
}

type recordsResponse struct {
	SessionID string         `json:"session_id"`
	Records   []storedRecord `json:"records"`
}

type storedRecord struct {
	Name           string  `json:"name"`
	Roll           string  `json:"roll"`
	SubmittedAt    string  `json:"submitted_at"`
	DistanceMeters float64 `json:"distance_meters"`
}
