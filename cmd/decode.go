package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/erfreader/internal/config"
	"firestige.xyz/erfreader/internal/pipeline"
	"firestige.xyz/erfreader/internal/sink"
	"firestige.xyz/erfreader/internal/sink/console"
	"firestige.xyz/erfreader/internal/sink/kafka"
	"firestige.xyz/erfreader/internal/sink/pcap"
)

type decodeOptions struct {
	decodeFlags

	sinks    []string
	format   string
	output   string
	pcapFile string
	payload  bool
	limit    int
	summary  bool
}

func newDecodeCmd(g *globals) *cobra.Command {
	o := &decodeOptions{}

	cmd := &cobra.Command{
		Use:   "decode <file.erf>",
		Short: "Decode a capture and deliver every TCP/UDP payload to the sinks",
		Long: `Decode reads the ERF capture record by record and hands every decoded
packet to the configured sinks. Records that are not Ethernet, not IPv4/IPv6,
or not TCP (UDP with --udp) are skipped. Unsupported input such as IPv4
fragments or IPv6 TCP aborts the run with a non-zero exit status.

Without --sink the sinks come from the configuration file, console otherwise.`,
		Example: `  erfreader decode capture.erf
  erfreader decode capture.erf.gz --udp --format json --payload
  erfreader decode capture.erf --filter "tcp port 443" --sink console,pcap --pcap-file out.pcap`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g, args[0])
		},
	}

	o.register(cmd)
	cmd.Flags().StringSliceVar(&o.sinks, "sink", nil, "sinks to deliver to (console, pcap, kafka)")
	cmd.Flags().StringVar(&o.format, "format", "", "console format: text or json")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "console output file (default stdout)")
	cmd.Flags().StringVar(&o.pcapFile, "pcap-file", "", "output file of the pcap sink")
	cmd.Flags().BoolVar(&o.payload, "payload", false, "include payload bytes in console/kafka output")
	cmd.Flags().IntVar(&o.limit, "limit", 0, "stop after this many packets (0 = no limit)")
	cmd.Flags().BoolVar(&o.summary, "summary", false, "print a run summary to stderr")

	return cmd
}

func (o *decodeOptions) run(cmd *cobra.Command, g *globals, path string) error {
	s, err := o.buildSinks(cmd, g.cfg.Sinks)
	if err != nil {
		return err
	}

	sum, runErr := run(cmd, g, path, &o.decodeFlags, s, pipeline.WithLimit(o.limit))
	if err := s.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close sinks: %w", err)
	}
	if o.summary {
		printSummary(cmd.ErrOrStderr(), sum)
	}
	return runErr
}

// sinkConfigs selects the sinks to build. The --sink flag wins over the
// configuration; a kafka sink named on the command line takes its options
// from the first kafka entry of the configuration.
func (o *decodeOptions) sinkConfigs(cmd *cobra.Command, configured []config.SinkConfig) []config.SinkConfig {
	if !cmd.Flags().Changed("sink") {
		if len(configured) == 0 {
			return []config.SinkConfig{{Type: console.Name}}
		}
		return configured
	}

	cfgs := make([]config.SinkConfig, 0, len(o.sinks))
	for _, name := range o.sinks {
		sc := config.SinkConfig{Type: name}
		for _, c := range configured {
			if c.Type == name {
				sc.Options = c.Options
				break
			}
		}
		cfgs = append(cfgs, sc)
	}
	return cfgs
}

func (o *decodeOptions) buildSinks(cmd *cobra.Command, configured []config.SinkConfig) (*sink.Multi, error) {
	cfgs := o.sinkConfigs(cmd, configured)
	sinks := make([]sink.Sink, 0, len(cfgs))
	fail := func(err error) (*sink.Multi, error) {
		_ = sink.NewMulti(sinks...).Close()
		return nil, err
	}

	for _, sc := range cfgs {
		var (
			s   sink.Sink
			err error
		)
		switch sc.Type {
		case console.Name:
			s, err = o.consoleSink(cmd, sc.Options)
		case pcap.Name:
			s, err = o.pcapSink(sc.Options)
		case kafka.Name:
			s, err = o.kafkaSink(sc.Options)
		default:
			s, err = sink.New(sc)
		}
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	return sink.NewMulti(sinks...), nil
}

func (o *decodeOptions) consoleSink(cmd *cobra.Command, options map[string]any) (sink.Sink, error) {
	var cfg console.Config
	if err := sink.DecodeOptions(options, &cfg); err != nil {
		return nil, fmt.Errorf("sink console: %w", err)
	}
	if cmd.Flags().Changed("format") {
		cfg.Format = o.format
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = o.output
	}
	if cmd.Flags().Changed("payload") {
		cfg.Payload = o.payload
	}

	if cfg.Output == "" || cfg.Output == "-" {
		return console.New(cmd.OutOrStdout(), cfg)
	}
	return console.Open(cfg)
}

func (o *decodeOptions) pcapSink(options map[string]any) (sink.Sink, error) {
	var cfg pcap.Config
	if err := sink.DecodeOptions(options, &cfg); err != nil {
		return nil, fmt.Errorf("sink pcap: %w", err)
	}
	if o.pcapFile != "" {
		cfg.Path = o.pcapFile
	}
	s, err := pcap.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("sink pcap: %w", err)
	}
	return s, nil
}

func (o *decodeOptions) kafkaSink(options map[string]any) (sink.Sink, error) {
	cfg, err := kafka.ParseConfig(options)
	if err != nil {
		return nil, fmt.Errorf("sink kafka: %w", err)
	}
	if o.payload {
		cfg.Payload = true
	}
	s, err := kafka.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("sink kafka: %w", err)
	}
	return s, nil
}
