package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/erfreader/internal/config"
	"firestige.xyz/erfreader/internal/core"
	"firestige.xyz/erfreader/internal/core/decoder"
	"firestige.xyz/erfreader/internal/filter"
	"firestige.xyz/erfreader/internal/log"
	"firestige.xyz/erfreader/internal/metrics"
	"firestige.xyz/erfreader/internal/pipeline"
	"firestige.xyz/erfreader/internal/sink"
	"firestige.xyz/erfreader/internal/source/erf"
)

// decodeFlags are shared by every command that reads a capture.
type decodeFlags struct {
	udp    bool
	filter string
}

func (f *decodeFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.udp, "udp", false, "decode UDP datagrams (overrides decoder.include_udp)")
	cmd.Flags().StringVar(&f.filter, "filter", "", "tcpdump-style frame filter, combined with decoder.filter")
}

// decoderConfig merges the configuration with the command line.
func (f *decodeFlags) decoderConfig(cmd *cobra.Command, cfg config.DecoderConfig) config.DecoderConfig {
	if cmd.Flags().Changed("udp") {
		cfg.IncludeUDP = f.udp
	}
	return cfg
}

// openReader opens path with a decoder built from cfg and the extra
// filter expression.
func openReader(path string, cfg config.DecoderConfig, extraFilter string) (*erf.Reader, error) {
	fromConfig, err := filter.New(cfg.Filter)
	if err != nil {
		return nil, err
	}
	fromFlag, err := filter.New(extraFilter)
	if err != nil {
		return nil, err
	}

	dec := decoder.NewStandardDecoder(decoder.Config{
		IncludeUDP: cfg.IncludeUDP,
		Filter:     filter.NewChain(fromConfig, fromFlag).Filter(),
	})
	return erf.Open(path, dec)
}

// run processes one capture file into s, serving metrics meanwhile when
// they are enabled.
func run(cmd *cobra.Command, g *globals, path string, flags *decodeFlags, s sink.Sink, opts ...pipeline.Option) (pipeline.Summary, error) {
	dcfg := flags.decoderConfig(cmd, g.cfg.Decoder)

	r, err := openReader(path, dcfg, flags.filter)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if g.cfg.Metrics.Enabled {
		srv := metrics.NewServer(g.cfg.Metrics.Listen, g.cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return pipeline.Summary{}, err
		}
		defer srv.Stop(context.Background())
	}

	logger := log.GetLogger().WithField("file", path)
	logger.WithField("udp", dcfg.IncludeUDP).Debug("decoding capture")

	sum, err := pipeline.Run(ctx, r, s, opts...)
	if err != nil {
		logger.WithError(err).Error("decoding aborted")
		return sum, err
	}

	logger.WithFields(map[string]interface{}{
		"records":   sum.Records,
		"packets":   sum.Packets,
		"skipped":   sum.SkippedTotal(),
		"truncated": sum.Truncated,
		"duration":  sum.Duration.String(),
	}).Info("capture decoded")
	return sum, nil
}

// printSummary writes a human-readable run summary.
func printSummary(w io.Writer, sum pipeline.Summary) {
	fmt.Fprintf(w, "records:        %d\n", sum.Records)
	fmt.Fprintf(w, "packets:        %d\n", sum.Packets)
	fmt.Fprintf(w, "payload bytes:  %d\n", sum.PayloadBytes)
	fmt.Fprintf(w, "skipped:        %d\n", sum.SkippedTotal())

	reasons := make([]core.SkipReason, 0, len(sum.Skipped))
	for reason := range sum.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, reason := range reasons {
		fmt.Fprintf(w, "  %-14s%d\n", string(reason)+":", sum.Skipped[reason])
	}

	if sum.Truncated {
		fmt.Fprintf(w, "truncated:      after %d complete records\n", sum.TruncatedAfter)
	}
	if sum.Stopped {
		fmt.Fprintln(w, "stopped:        before end of file")
	}
}
