package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/geo-attendance/internal/attendance"
)

const (
	defaultHTTPPort    = 3000
	defaultSQLiteDSN   = "attendance.db"
	defaultSinkTimeout = 5 * time.Second
	defaultQRSize      = 256

	// sqliteDisabled turns the SQLite sink off when used as ATTENDANCE_SQLITE_DSN.
	sqliteDisabled = "off"
)

// Config captures environment driven configuration values for the attendance service.
type Config struct {
	HTTPPort      int
	PublicBaseURL string
	ExportPolicy  attendance.ExportPolicy
	Location      *time.Location
	LogLevel      slog.Level
	QRSize        int

	// SQLiteDSN is empty when the SQLite sink is disabled.
	SQLiteDSN   string
	DatabaseURL string
	RedisURL    string
	SinkTimeout time.Duration

	SendGridAPIKey string
	ReportFrom     string
	ReportTo       []string
}

// MailerEnabled reports whether e-mail exports are configured.
func (c Config) MailerEnabled() bool {
	return c.SendGridAPIKey != ""
}

// LoadDotEnv loads a .env file from the working directory unless APP_ENV is
// production. A missing file is not an error.
func LoadDotEnv(filenames ...string) (bool, error) {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production") {
		return false, nil
	}
	if err := godotenv.Load(filenames...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("load .env: %w", err)
	}
	return true, nil
}

// Load parses configuration values from the current process environment.
//
// Optional values fall back to defaults. Every missing or malformed variable
// is reported in a single error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:     defaultHTTPPort,
		ExportPolicy: attendance.ExportAnytime,
		Location:     time.Local,
		LogLevel:     slog.LevelInfo,
		QRSize:       defaultQRSize,
		SQLiteDSN:    defaultSQLiteDSN,
		SinkTimeout:  defaultSinkTimeout,
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	portValue := env("ATTENDANCE_HTTP_PORT")
	portKey := "ATTENDANCE_HTTP_PORT"
	if portValue == "" {
		portValue, portKey = env("PORT"), "PORT"
	}
	if portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, portKey)
		} else {
			cfg.HTTPPort = port
		}
	}

	if base := env("ATTENDANCE_PUBLIC_BASE_URL"); base != "" {
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			invalid = append(invalid, "ATTENDANCE_PUBLIC_BASE_URL")
		} else {
			cfg.PublicBaseURL = strings.TrimRight(base, "/")
		}
	}

	if policyValue := env("ATTENDANCE_EXPORT_POLICY"); policyValue != "" {
		policy, err := attendance.ParseExportPolicy(policyValue)
		if err != nil {
			invalid = append(invalid, "ATTENDANCE_EXPORT_POLICY")
		} else {
			cfg.ExportPolicy = policy
		}
	}

	if tz := env("ATTENDANCE_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "ATTENDANCE_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if levelValue := env("ATTENDANCE_LOG_LEVEL"); levelValue != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, "ATTENDANCE_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if sizeValue := env("ATTENDANCE_QR_SIZE"); sizeValue != "" {
		size, err := strconv.Atoi(sizeValue)
		if err != nil || size < 64 || size > 2048 {
			invalid = append(invalid, "ATTENDANCE_QR_SIZE")
		} else {
			cfg.QRSize = size
		}
	}

	if dsn := env("ATTENDANCE_SQLITE_DSN"); dsn != "" {
		if strings.EqualFold(dsn, sqliteDisabled) {
			cfg.SQLiteDSN = ""
		} else {
			cfg.SQLiteDSN = dsn
		}
	}

	cfg.DatabaseURL = env("ATTENDANCE_DATABASE_URL")
	cfg.RedisURL = env("ATTENDANCE_REDIS_URL")

	if timeoutValue := env("ATTENDANCE_SINK_TIMEOUT"); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "ATTENDANCE_SINK_TIMEOUT")
		} else {
			cfg.SinkTimeout = timeout
		}
	}

	cfg.SendGridAPIKey = env("ATTENDANCE_SENDGRID_API_KEY")
	if cfg.MailerEnabled() {
		if cfg.ReportFrom = env("ATTENDANCE_REPORT_FROM"); cfg.ReportFrom == "" {
			missing = append(missing, "ATTENDANCE_REPORT_FROM")
		}
		cfg.ReportTo = splitList(env("ATTENDANCE_REPORT_TO"))
		if len(cfg.ReportTo) == 0 {
			missing = append(missing, "ATTENDANCE_REPORT_TO")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
