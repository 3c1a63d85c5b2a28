// Package pipeline drives an ERF reader into a sink, one record at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firestige.xyz/erfreader/internal/core"
	"firestige.xyz/erfreader/internal/log"
	"firestige.xyz/erfreader/internal/sink"
	"firestige.xyz/erfreader/internal/source/erf"
)

// Source yields decode results record by record. *erf.Reader implements it.
type Source interface {
	Next() (erf.Result, error)
	// Records counts the complete records read, including one that failed
	// with a fatal error.
	Records() int
}

// Summary describes a finished run.
type Summary struct {
	Records int // complete records read
	Packets int // packets delivered to the sink
	Skipped map[core.SkipReason]int

	// Truncated is set when the stream ended inside a record;
	// TruncatedAfter is the number of complete records before it.
	Truncated      bool
	TruncatedAfter int

	// Stopped is set when the sink returned core.ErrStop or the packet
	// limit was reached.
	Stopped bool

	PayloadBytes int // captured payload bytes delivered
	Duration     time.Duration
}

// SkippedTotal returns the number of skipped records across all reasons.
func (s Summary) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

type options struct {
	limit  int
	logger log.Logger
}

// Option configures Run.
type Option func(*options)

// WithLimit stops the run after n delivered packets. n <= 0 means no limit.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// WithLogger overrides the logger used for per-record diagnostics.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run reads src until the end of the stream and hands every decoded packet
// to s. It returns a non-nil error for unsupported input, broken framing,
// I/O and sink failures, and context cancellation; the summary then covers
// everything processed before the failure.
func Run(ctx context.Context, src Source, s sink.Sink, opts ...Option) (sum Summary, err error) {
	o := options{logger: log.GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	sum = Summary{Skipped: make(map[core.SkipReason]int)}
	start := time.Now()
	defer func() {
		sum.Duration = time.Since(start)
		observeRun(sum.Duration)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		res, err := src.Next()
		if err != nil {
			sum.Records = src.Records()
			observeFailure(err)
			return sum, err
		}
		observeOutcome(res)

		switch res.Outcome {
		case core.OutcomePacket:
			sum.Records = res.Records
			pkt := res.Packet
			if err := s.Send(pkt); err != nil {
				if errors.Is(err, core.ErrStop) {
					sum.Stopped = true
					o.logger.WithField("record", pkt.Record).Debug("sink stopped the run")
					return sum, nil
				}
				observeSinkError(s)
				return sum, fmt.Errorf("sink failed at record %d: %w", pkt.Record, err)
			}
			sum.Packets++
			sum.PayloadBytes += len(pkt.Payload)
			observePacket(pkt)

			if o.limit > 0 && sum.Packets >= o.limit {
				sum.Stopped = true
				return sum, nil
			}

		case core.OutcomeSkipped:
			sum.Records = res.Records
			sum.Skipped[res.Reason]++
			if o.logger.IsDebugEnabled() {
				l := o.logger.WithField("record", res.Records-1).WithField("reason", string(res.Reason))
				if res.Cause != nil {
					l = l.WithError(res.Cause)
				}
				l.Debug("record skipped")
			}

		case core.OutcomeTruncated:
			sum.Records = res.Records
			sum.Truncated = true
			sum.TruncatedAfter = res.Records
			o.logger.WithField("records", res.Records).Warn("capture truncated inside a record")
			return sum, nil

		case core.OutcomeEndOfStream:
			sum.Records = res.Records
			return sum, nil

		default:
			return sum, fmt.Errorf("unexpected outcome %s", res.Outcome)
		}
	}
}
