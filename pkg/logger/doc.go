// Package logger provides the structured logging interface used by rolesync.
//
// It wraps zerolog with a small interface so components can accept a Logger
// and tests can pass a TestLogger or NewNopLogger instead.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("run_id", runID)
//	log.InfoWithFields("Listing fetched", map[string]interface{}{
//	    "source": "manifest",
//	    "files":  42,
//	})
//
// Console output is written to stderr. When Logging.File is set, entries are
// also appended to that file as JSON lines.
package logger
