// Package logger provides the structured logging interface used across the
// harvester.
//
// It wraps zerolog. Console output is colored when stderr is a terminal and
// JSON lines otherwise; a log file, when configured, always receives JSON.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "crawler")
//	log.InfoWithFields("Page harvested", map[string]interface{}{
//	    "records": 50,
//	})
//
// Tests use NewNopLogger to discard output or NewTestLogger to capture it.
package logger
