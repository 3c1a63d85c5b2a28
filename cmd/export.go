package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/erfreader/internal/sink/pcap"
)

type exportOptions struct {
	decodeFlags

	output  string
	snapLen int
	micros  bool
}

func newExportCmd(g *globals) *cobra.Command {
	o := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <file.erf> -o <file.pcap>",
		Short: "Write the frames of every decoded packet to a pcap file",
		Long: `Export decodes the capture like the decode command and writes the Ethernet
frame of every delivered packet to a pcap file, keeping the ERF timestamps
and wire lengths. Skipped records are not exported.`,
		Example: `  erfreader export capture.erf -o capture.pcap
  erfreader export capture.erf -o web.pcap --filter "tcp port 80" --micros`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g, args[0])
		},
	}

	o.register(cmd)
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "pcap file to write (required)")
	cmd.Flags().IntVar(&o.snapLen, "snaplen", 65535, "maximum bytes stored per frame")
	cmd.Flags().BoolVar(&o.micros, "micros", false, "write microsecond timestamps instead of nanoseconds")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (o *exportOptions) run(cmd *cobra.Command, g *globals, path string) error {
	w, err := pcap.New(pcap.Config{
		Path:    o.output,
		SnapLen: o.snapLen,
		Micros:  o.micros,
	})
	if err != nil {
		return err
	}

	_, runErr := run(cmd, g, path, &o.decodeFlags, w)
	if err := w.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close %s: %w", o.output, err)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d packets to %s\n", w.Written(), o.output)
	return nil
}
