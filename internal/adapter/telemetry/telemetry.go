package telemetry

import (
	"context"
	"log/slog"

	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/niksmo/darkstore/internal/core/port"
)

var (
	_ port.FailureReporter = (*LogReporter)(nil)
	_ port.FailureReporter = (MultiReporter)(nil)
)

// A LogReporter writes persistence failures to a structured logger.
type LogReporter struct {
	log *slog.Logger
}

// NewLogReporter uses slog.Default when log is nil.
func NewLogReporter(log *slog.Logger) LogReporter {
	if log == nil {
		log = slog.Default()
	}
	return LogReporter{log: log.With("op", "LogReporter.ReportFailure")}
}

func (r LogReporter) ReportFailure(ctx context.Context, f domain.PersistenceFailure) {
	r.log.ErrorContext(ctx, "persistence failure",
		"persistenceOp", string(f.Op),
		"key", f.Key,
		"at", f.At,
		"err", f.Err,
	)
}

// MultiReporter fans a failure out to every reporter in order.
type MultiReporter []port.FailureReporter

func NewMultiReporter(rs ...port.FailureReporter) MultiReporter {
	m := make(MultiReporter, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m MultiReporter) ReportFailure(ctx context.Context, f domain.PersistenceFailure) {
	for _, r := range m {
		r.ReportFailure(ctx, f)
	}
}

// MultiListener fans a snapshot out to every listener in order.
type MultiListener []port.CartListener

func (m MultiListener) CartChanged(ctx context.Context, s domain.Snapshot) {
	for _, l := range m {
		l.CartChanged(ctx, s)
	}
}
