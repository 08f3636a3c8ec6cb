package application

import (
	"log/slog"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	"contestvote/contexts/contest-voting/ballot-engine/ports"
)

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// ResolveMetrics guarantees a non-nil metrics sink.
func ResolveMetrics(metrics ports.Metrics) ports.Metrics {
	if metrics == nil {
		return NoopMetrics{}
	}
	return metrics
}

// ResolveNow reads the clock, falling back to wall time.
func ResolveNow(clock ports.Clock) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock.Now().UTC()
}

type NoopMetrics struct{}

func (NoopMetrics) ObserveVote(string)                                {}
func (NoopMetrics) ObserveTally(entities.VotingMethod, time.Duration) {}
func (NoopMetrics) ObserveCacheLookup(bool)                           {}
