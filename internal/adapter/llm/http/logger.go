package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Logger provides structured logging for model API calls.
type Logger interface {
	// LogRequest logs an outgoing API request (API key redacted).
	LogRequest(ctx context.Context, req RequestLog)

	// LogResponse logs an API response with timing and size info.
	LogResponse(ctx context.Context, resp ResponseLog)

	// LogError logs an API error.
	LogError(ctx context.Context, err ErrorLog)

	// LogWarning logs a warning with structured fields.
	LogWarning(ctx context.Context, message string, fields map[string]interface{})

	// LogInfo logs an informational message with structured fields.
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}

// RequestLog contains request information for logging.
type RequestLog struct {
	Provider     string
	Model        string
	Timestamp    time.Time
	Attempt      int
	PromptChars  int
	PromptTokens int    // Estimated, not billed
	APIKey       string // Redacted to last 4 chars before emission
}

// ResponseLog contains response information for logging.
type ResponseLog struct {
	Provider      string
	Model         string
	Timestamp     time.Time
	Duration      time.Duration
	ResponseChars int
	StatusCode    int
	StopReason    string
	Preview       string // Already truncated; emitted at debug level only
}

// ErrorLog contains error information for logging.
type ErrorLog struct {
	Provider   string
	Model      string
	Timestamp  time.Time
	Duration   time.Duration
	Attempt    int
	Error      error
	StatusCode int
	Retryable  bool
}

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelError
)

// LogFormat defines the output format for logs.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// DefaultLogger writes structured logs via the standard log package.
type DefaultLogger struct {
	level      LogLevel
	format     LogFormat
	redactKeys bool
}

// NewDefaultLogger creates a logger with the specified config.
func NewDefaultLogger(level LogLevel, format LogFormat, redactKeys bool) *DefaultLogger {
	return &DefaultLogger{
		level:      level,
		format:     format,
		redactKeys: redactKeys,
	}
}

// LogRequest logs an API request at debug level.
func (l *DefaultLogger) LogRequest(ctx context.Context, req RequestLog) {
	if l.level > LogLevelDebug {
		return
	}

	redacted := l.RedactAPIKey(req.APIKey)
	if l.format == LogFormatJSON {
		log.Printf(`{"level":"debug","type":"request","provider":"%s","model":"%s","timestamp":"%s","attempt":%d,"prompt_chars":%d,"prompt_tokens":%d,"api_key":"%s"}`,
			req.Provider, req.Model, req.Timestamp.Format(time.RFC3339),
			req.Attempt, req.PromptChars, req.PromptTokens, redacted)
	} else {
		log.Printf("[DEBUG] %s/%s: request sent (attempt=%d, prompt=%d chars, ~%d tokens, key=%s)",
			req.Provider, req.Model, req.Attempt, req.PromptChars, req.PromptTokens, redacted)
	}
}

// LogResponse logs an API response at info level.
func (l *DefaultLogger) LogResponse(ctx context.Context, resp ResponseLog) {
	if l.level > LogLevelInfo {
		return
	}

	if l.format == LogFormatJSON {
		log.Printf(`{"level":"info","type":"response","provider":"%s","model":"%s","timestamp":"%s","duration_ms":%d,"response_chars":%d,"status_code":%d,"stop_reason":"%s"}`,
			resp.Provider, resp.Model, resp.Timestamp.Format(time.RFC3339),
			resp.Duration.Milliseconds(), resp.ResponseChars, resp.StatusCode, resp.StopReason)
	} else {
		log.Printf("[INFO] %s/%s: response received (duration=%.1fs, %d chars)",
			resp.Provider, resp.Model, resp.Duration.Seconds(), resp.ResponseChars)
	}

	if l.level <= LogLevelDebug && resp.Preview != "" {
		if l.format == LogFormatJSON {
			log.Printf(`{"level":"debug","type":"response_preview","provider":"%s","model":"%s","preview":%q}`,
				resp.Provider, resp.Model, resp.Preview)
		} else {
			log.Printf("[DEBUG] %s/%s: response preview: %s", resp.Provider, resp.Model, resp.Preview)
		}
	}
}

// LogError logs an API error.
func (l *DefaultLogger) LogError(ctx context.Context, errLog ErrorLog) {
	if l.level > LogLevelError {
		return
	}

	retryableStr := "non-retryable"
	if errLog.Retryable {
		retryableStr = "retryable"
	}

	if l.format == LogFormatJSON {
		log.Printf(`{"level":"error","type":"error","provider":"%s","model":"%s","timestamp":"%s","duration_ms":%d,"attempt":%d,"error":"%s","status_code":%d,"retryable":%t}`,
			errLog.Provider, errLog.Model, errLog.Timestamp.Format(time.RFC3339),
			errLog.Duration.Milliseconds(), errLog.Attempt, errLog.Error.Error(),
			errLog.StatusCode, errLog.Retryable)
	} else {
		log.Printf("[ERROR] %s/%s: API call failed (attempt=%d, status=%d, %s): %v",
			errLog.Provider, errLog.Model, errLog.Attempt, errLog.StatusCode, retryableStr, errLog.Error)
	}
}

// LogWarning logs a warning with arbitrary structured fields. Warnings
// surface pipeline degradation (fallbacks, truncation, store failures)
// rather than API call outcomes, so they carry a free-form field map.
func (l *DefaultLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.logStructured("warning", "WARN", message, fields)
}

// LogInfo logs an informational message with arbitrary structured fields.
func (l *DefaultLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.logStructured("info", "INFO", message, fields)
}

func (l *DefaultLogger) logStructured(level, tag, message string, fields map[string]interface{}) {
	if l.format == LogFormatJSON {
		entry := make(map[string]interface{}, len(fields)+3)
		for k, v := range fields {
			entry[k] = v
		}
		entry["level"] = level
		entry["message"] = message
		entry["timestamp"] = time.Now().Format(time.RFC3339)
		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf(`{"level":"%s","message":"%s"}`, level, message)
			return
		}
		log.Printf("%s", data)
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	if b.Len() > 0 {
		log.Printf("[%s] %s (%s)", tag, message, b.String())
	} else {
		log.Printf("[%s] %s", tag, message)
	}
}

// RedactAPIKey shows only the last 4 characters of an API key with explicit
// redaction markers.
func (l *DefaultLogger) RedactAPIKey(key string) string {
	if !l.redactKeys {
		return key
	}
	if len(key) <= 4 {
		return "[REDACTED]"
	}
	return fmt.Sprintf("[REDACTED-%s]", key[len(key)-4:])
}

// NopLogger discards everything. Used where no logger was injected.
type NopLogger struct{}

func (NopLogger) LogRequest(context.Context, RequestLog)                     {}
func (NopLogger) LogResponse(context.Context, ResponseLog)                   {}
func (NopLogger) LogError(context.Context, ErrorLog)                         {}
func (NopLogger) LogWarning(context.Context, string, map[string]interface{}) {}
func (NopLogger) LogInfo(context.Context, string, map[string]interface{})    {}
