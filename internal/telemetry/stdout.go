package telemetry

import (
	"github.com/rjboer/gohackrf/internal/logging"
)

// Reporter captures telemetry events.
type Reporter interface {
	Report(sample Sample)
}

// StdoutReporter logs stream samples through the structured logger.
type StdoutReporter struct {
	logger logging.Logger
}

// NewStdoutReporter builds a stdout reporter with the provided logger.
func NewStdoutReporter(logger logging.Logger) StdoutReporter {
	if logger == nil {
		logger = logging.Default()
	}
	return StdoutReporter{logger: logger}
}

func (r StdoutReporter) Report(sample Sample) {
	fields := []logging.Field{
		logging.Subsystem("telemetry"),
		{Key: "mode", Value: sample.Mode},
		{Key: "packets", Value: sample.Packets},
		{Key: "mib_per_sec", Value: sample.BytesPerSec / (1 << 20)},
		{Key: "queue_len", Value: sample.QueueLen},
	}
	if sample.PoolDropped != 0 {
		fields = append(fields, logging.Field{Key: "pool_dropped", Value: sample.PoolDropped})
	}
	r.logger.Info("stream sample", fields...)
}

// MultiReporter fans out telemetry to multiple destinations.
type MultiReporter []Reporter

// Report forwards telemetry to each configured reporter.
func (m MultiReporter) Report(sample Sample) {
	for _, r := range m {
		if r != nil {
			r.Report(sample)
		}
	}
}
