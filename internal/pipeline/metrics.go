package pipeline

import (
	"errors"
	"fmt"
	"time"

	"firestige.xyz/erfreader/internal/core"
	"firestige.xyz/erfreader/internal/metrics"
	"firestige.xyz/erfreader/internal/sink"
	"firestige.xyz/erfreader/internal/source/erf"
)

func observeOutcome(res erf.Result) {
	metrics.RecordsTotal.WithLabelValues(res.Outcome.String()).Inc()
	if res.Outcome == core.OutcomeSkipped {
		metrics.SkippedTotal.WithLabelValues(string(res.Reason)).Inc()
	}
}

func observePacket(pkt *core.DecodedPacket) {
	metrics.PacketsByTransport.WithLabelValues(pkt.Transport.String()).Inc()
	metrics.PayloadBytesTotal.Add(float64(len(pkt.Payload)))
}

func observeFailure(err error) {
	outcome := "error"
	if errors.Is(err, core.ErrUnsupportedFeature) {
		outcome = "unsupported"
	}
	metrics.RecordsTotal.WithLabelValues(outcome).Inc()
}

func observeSinkError(s sink.Sink) {
	metrics.SinkErrorsTotal.WithLabelValues(fmt.Sprintf("%T", s)).Inc()
}

func observeRun(d time.Duration) {
	metrics.RunDurationSeconds.Observe(d.Seconds())
}
