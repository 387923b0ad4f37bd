package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/geo-attendance/internal/attendance"
)

var allKeys = []string{
	"ATTENDANCE_HTTP_PORT",
	"PORT",
	"ATTENDANCE_PUBLIC_BASE_URL",
	"ATTENDANCE_EXPORT_POLICY",
	"ATTENDANCE_TIMEZONE",
	"ATTENDANCE_LOG_LEVEL",
	"ATTENDANCE_QR_SIZE",
	"ATTENDANCE_SQLITE_DSN",
	"ATTENDANCE_DATABASE_URL",
	"ATTENDANCE_REDIS_URL",
	"ATTENDANCE_SINK_TIMEOUT",
	"ATTENDANCE_SENDGRID_API_KEY",
	"ATTENDANCE_REPORT_FROM",
	"ATTENDANCE_REPORT_TO",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 3000 {
			t.Fatalf("expected default HTTP port 3000, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "attendance.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.ExportPolicy != attendance.ExportAnytime {
			t.Fatalf("unexpected default policy %q", cfg.ExportPolicy)
		}
		if cfg.Location != time.Local || cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("unexpected location or level: %v %v", cfg.Location, cfg.LogLevel)
		}
		if cfg.SinkTimeout != 5*time.Second || cfg.QRSize != 256 {
			t.Fatalf("unexpected sink timeout or qr size: %v %d", cfg.SinkTimeout, cfg.QRSize)
		}
		if cfg.MailerEnabled() {
			t.Fatal("expected mailer to be disabled")
		}
	})

	t.Run("reads every variable", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ATTENDANCE_HTTP_PORT", "8081")
		t.Setenv("ATTENDANCE_PUBLIC_BASE_URL", "https://attend.example.edu/")
		t.Setenv("ATTENDANCE_EXPORT_POLICY", "after_expiry")
		t.Setenv("ATTENDANCE_TIMEZONE", "UTC")
		t.Setenv("ATTENDANCE_LOG_LEVEL", "debug")
		t.Setenv("ATTENDANCE_QR_SIZE", "320")
		t.Setenv("ATTENDANCE_SQLITE_DSN", "off")
		t.Setenv("ATTENDANCE_DATABASE_URL", "postgres://localhost/attendance")
		t.Setenv("ATTENDANCE_REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("ATTENDANCE_SINK_TIMEOUT", "2s")
		t.Setenv("ATTENDANCE_SENDGRID_API_KEY", "SG.key")
		t.Setenv("ATTENDANCE_REPORT_FROM", "noreply@example.edu")
		t.Setenv("ATTENDANCE_REPORT_TO", "a@example.edu, ,b@example.edu")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 8081 || cfg.PublicBaseURL != "https://attend.example.edu" {
			t.Fatalf("unexpected http settings %+v", cfg)
		}
		if cfg.ExportPolicy != attendance.ExportAfterExpiry || cfg.Location != time.UTC || cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("unexpected presentation settings %+v", cfg)
		}
		if cfg.QRSize != 320 || cfg.SQLiteDSN != "" || cfg.SinkTimeout != 2*time.Second {
			t.Fatalf("unexpected sink settings %+v", cfg)
		}
		if cfg.DatabaseURL == "" || cfg.RedisURL == "" {
			t.Fatalf("expected database and redis urls, got %+v", cfg)
		}
		if !cfg.MailerEnabled() || len(cfg.ReportTo) != 2 || cfg.ReportTo[1] != "b@example.edu" {
			t.Fatalf("unexpected report settings %+v", cfg)
		}
	})

	t.Run("falls back to PORT", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "9000")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9000 {
			t.Fatalf("expected port 9000, got %d", cfg.HTTPPort)
		}
	})

	t.Run("errors when report addresses are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ATTENDANCE_SENDGRID_API_KEY", "SG.key")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "required environment variables are not set: ATTENDANCE_REPORT_FROM, ATTENDANCE_REPORT_TO"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("collects invalid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "-1")
		t.Setenv("ATTENDANCE_PUBLIC_BASE_URL", "attend.example.edu")
		t.Setenv("ATTENDANCE_EXPORT_POLICY", "never")
		t.Setenv("ATTENDANCE_TIMEZONE", "Mars/Olympus")
		t.Setenv("ATTENDANCE_SINK_TIMEOUT", "soon")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid environment variable values: PORT, ATTENDANCE_PUBLIC_BASE_URL, ATTENDANCE_EXPORT_POLICY, ATTENDANCE_TIMEZONE, ATTENDANCE_SINK_TIMEOUT"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("loads file outside production", func(t *testing.T) {
		t.Setenv("APP_ENV", "development")
		t.Setenv("ATTENDANCE_DOTENV_MARKER", "")
		os.Unsetenv("ATTENDANCE_DOTENV_MARKER")

		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("ATTENDANCE_DOTENV_MARKER=loaded\n"), 0o600); err != nil {
			t.Fatalf("write .env: %v", err)
		}

		loaded, err := LoadDotEnv(path)
		if err != nil || !loaded {
			t.Fatalf("expected file to load, got loaded=%v err=%v", loaded, err)
		}
		if got := os.Getenv("ATTENDANCE_DOTENV_MARKER"); got != "loaded" {
			t.Fatalf("expected marker to be set, got %q", got)
		}
	})

	t.Run("missing file is ignored", func(t *testing.T) {
		t.Setenv("APP_ENV", "")
		loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
		if err != nil || loaded {
			t.Fatalf("expected silent skip, got loaded=%v err=%v", loaded, err)
		}
	})

	t.Run("skipped in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("ATTENDANCE_DOTENV_SKIPPED=1\n"), 0o600); err != nil {
			t.Fatalf("write .env: %v", err)
		}
		loaded, err := LoadDotEnv(path)
		if err != nil || loaded {
			t.Fatalf("expected production to skip .env, got loaded=%v err=%v", loaded, err)
		}
	})
}
