package httpapi

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel is read once from SPECD_LOG_LEVEL; SetDefaultLogLevel overrides it.
var defaultLogLevel = parseLevel(os.Getenv("SPECD_LOG_LEVEL"))

// SetDefaultLogLevel sets the access log level used when a request carries no override.
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// AccessLog logs each request at its effective level: errors only at
// LevelError, every completed request at LevelInfo, request starts too at
// LevelDebug.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lvl := requestLogLevel(r)
		if lvl == LevelOff {
			next.ServeHTTP(w, r)
			return
		}
		rid := middleware.GetReqID(r.Context())
		if lvl >= LevelDebug {
			logEvent(zerolog.DebugLevel, r, rid, 0, 0, "request start")
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if lvl >= LevelInfo || status >= http.StatusInternalServerError {
			level := zerolog.InfoLevel
			if status >= http.StatusInternalServerError {
				level = zerolog.ErrorLevel
			}
			logEvent(level, r, rid, status, time.Since(start), "request end")
		}
	})
}

func logEvent(level zerolog.Level, r *http.Request, rid string, status int, dur time.Duration, msg string) {
	if zlog == nil {
		log.Printf("%s method=%s path=%s status=%d dur=%s request_id=%s", msg, r.Method, r.URL.Path, status, dur, rid)
		return
	}
	z := zlog.WithLevel(level).Str("method", r.Method).Str("path", r.URL.Path)
	if status != 0 {
		z = z.Int("status", status).Dur("dur", dur)
	}
	if rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg(msg)
}
