package http

import (
	"embed"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

//go:embed web/*.html
var webFS embed.FS

type RouterConfig struct {
	Attendance *AttendanceHandler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = methodNotAllowed(r)

	if h := cfg.Attendance; h != nil {
		r.HandleFunc("/generate-qr", h.GenerateQR).Methods(http.MethodPost)
		r.HandleFunc("/mark-attendance", h.MarkAttendance).Methods(http.MethodPost)
		r.HandleFunc("/session", h.Session).Methods(http.MethodGet)
		r.HandleFunc("/download", h.Download).Methods(http.MethodGet)
		r.HandleFunc("/qr.png", h.QRImage).Methods(http.MethodGet)
		if h.HistoryEnabled() {
			r.HandleFunc("/session/records", h.Records).Methods(http.MethodGet)
		}
		if h.EmailEnabled() {
			r.HandleFunc("/download/email", h.EmailExport).Methods(http.MethodPost)
		}
	}

	r.Handle("/", staticPage("web/index.html")).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/student.html", staticPage("web/student.html")).Methods(http.MethodGet, http.MethodHead)

	var handler http.Handler = r
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func staticPage(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, webFS, name)
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	newResponder(nil).writeError(r.Context(), w, http.StatusNotFound, nil)
}

func methodNotAllowed(router *mux.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var allowed []string
		for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPost} {
			candidate := r.Clone(r.Context())
			candidate.Method = method
			var match mux.RouteMatch
			if router.Match(candidate, &match) && match.MatchErr == nil {
				allowed = append(allowed, method)
			}
		}
		if len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
		}
		newResponder(nil).writeError(r.Context(), w, http.StatusMethodNotAllowed, nil)
	}
}
