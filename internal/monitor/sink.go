package monitor

import (
	"context"

	"github.com/wisbric/fleetwatch/internal/telemetry"
	"github.com/wisbric/fleetwatch/pkg/collector"
	"github.com/wisbric/fleetwatch/pkg/runlog"
)

// runlogSink adapts runlog.Logger to collector.Sink, recording every
// per-vessel query attempt to the Run Logger and to the collector latency
// metrics as it happens rather than after the run completes.
type runlogSink struct {
	logger *runlog.Logger
}

func newRunlogSink(logger *runlog.Logger) *runlogSink {
	return &runlogSink{logger: logger}
}

// Record implements collector.Sink.
func (s *runlogSink) Record(_ context.Context, r collector.QueryResult) {
	errMsg := ""
	if r.Err != nil {
		errMsg = r.Err.Error()
	}

	s.logger.LogVesselResult(runlog.VesselResult{
		RunID:         r.RunID,
		VesselID:      r.VesselID,
		AttemptNumber: r.Attempt,
		Success:       r.Success,
		QueryDuration: r.Duration,
		ErrorMessage:  errMsg,
		Timestamp:     r.Timestamp,
	})

	telemetry.VesselQueryDuration.WithLabelValues(r.VesselID).Observe(r.Duration.Seconds())
	if !r.Success {
		telemetry.VesselQueryFailuresTotal.WithLabelValues(r.VesselID).Inc()
	}
}
