package paxos

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a production-style zap logger, mirroring the teacher's
// serverLogger(logLevel); debug builds trade the sampler for full verbosity.
func newLogger(debug bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Development = true
	}
	logger, err := cfg.Build()
	if err != nil {
		// Logging can't be wired yet; fall back rather than crash the
		// replica over an observability failure.
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

// logFields prepends replica-identifying fields to a variadic zap field
// list, the same helper shape the teacher threads through every log call
// on *Server.
func logFields(localID int, view int32, kv ...interface{}) []interface{} {
	base := []interface{}{"replica", localID, "view", view}
	return append(base, kv...)
}
