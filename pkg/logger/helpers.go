package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed upstream HTTP call. Client errors are warnings,
// server errors and transport failures (status 0) are errors.
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 400:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.ErrorWithFields("HTTP request failed", fields)
	}
}

// LogDownload logs the outcome of a single image transfer
func LogDownload(l Logger, source, name string, bytes int64, err error) {
	entry := l.WithFields(map[string]interface{}{
		"source": source,
		"file":   name,
	})

	if err != nil {
		entry.WithError(err).Error("Download failed")
		return
	}
	entry.WithField("bytes", bytes).Info("Download completed")
}

// LogPhase logs entry into an orchestrator phase
func LogPhase(l Logger, phase string) {
	l.WithField("phase", phase).Info("Entering phase")
}

// LogSyncStats logs the final counters of a run
func LogSyncStats(l Logger, runID string, downloaded, failed int, elapsed time.Duration) {
	l.InfoWithFields("Sync finished", map[string]interface{}{
		"run_id":     runID,
		"downloaded": downloaded,
		"failed":     failed,
		"elapsed":    elapsed.Round(time.Millisecond).String(),
	})
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(string)                                   {}
func (n *nopLogger) Info(string)                                    {}
func (n *nopLogger) Warn(string)                                    {}
func (n *nopLogger) Error(string)                                   {}
func (n *nopLogger) Fatal(string)                                   {}
func (n *nopLogger) WithField(string, interface{}) Logger           { return n }
func (n *nopLogger) WithFields(map[string]interface{}) Logger       { return n }
func (n *nopLogger) WithError(error) Logger                         { return n }
func (n *nopLogger) WithContext(context.Context) Logger             { return n }
func (n *nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(string, map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                    { return nil }
