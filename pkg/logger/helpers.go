package logger

import (
	"fmt"
	"time"
)

// LogPageProgress reports the progress estimate after a page has been merged
func LogPageProgress(l Logger, role string, harvested, remaining int, eta time.Duration, elapsed string) {
	percentage := 0.0
	if total := harvested + remaining; total > 0 && remaining > 0 {
		percentage = float64(harvested) / float64(total) * 100
	} else if remaining <= 0 {
		percentage = 100
	}

	l.WithFields(map[string]interface{}{
		"role":       role,
		"harvested":  harvested,
		"remaining":  remaining,
		"eta":        eta.String(),
		"elapsed":    elapsed,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Page harvested")
}

// LogAttempt logs the end of one supervised crawl attempt
func LogAttempt(l Logger, attempt, consecutiveFailures int, outcome string, err error) {
	fields := map[string]interface{}{
		"attempt":              attempt,
		"consecutive_failures": consecutiveFailures,
		"outcome":              outcome,
	}
	entry := l.WithFields(fields)
	if err != nil {
		entry.WithError(err).Warn("Crawl attempt ended")
		return
	}
	entry.Info("Crawl attempt ended")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(config) > 0 {
		entry = entry.WithFields(config)
	}
	entry.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
