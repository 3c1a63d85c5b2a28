package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/erfreader/internal/pipeline"
	"firestige.xyz/erfreader/internal/sink"
)

type statsOptions struct {
	decodeFlags

	json bool
	top  int
}

// statsReport is the --json output of the stats command.
type statsReport struct {
	Records        int              `json:"records"`
	Packets        int              `json:"packets"`
	Skipped        map[string]int   `json:"skipped"`
	Truncated      bool             `json:"truncated"`
	TruncatedAfter int              `json:"truncated_after,omitempty"`
	PayloadBytes   int              `json:"payload_bytes"`
	CapturedBytes  int              `json:"captured_bytes"`
	Lost           int              `json:"lost"`
	ByTransport    map[string]int   `json:"by_transport"`
	VLANs          map[uint16]int   `json:"vlans,omitempty"`
	First          *time.Time       `json:"first,omitempty"`
	Last           *time.Time       `json:"last,omitempty"`
	TopFlows       []sink.FlowStats `json:"top_flows"`
}

func newStatsCmd(g *globals) *cobra.Command {
	o := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats <file.erf>",
		Short: "Summarize the traffic of a capture",
		Long: `Stats decodes the whole capture and prints record outcomes, per-transport
counters, VLANs and the busiest flows by payload bytes.`,
		Example: `  erfreader stats capture.erf
  erfreader stats capture.erf --udp --top 20 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g, args[0])
		},
	}

	o.register(cmd)
	cmd.Flags().BoolVar(&o.json, "json", false, "print the report as JSON")
	cmd.Flags().IntVar(&o.top, "top", 10, "number of flows to list (0 = all)")

	return cmd
}

func (o *statsOptions) run(cmd *cobra.Command, g *globals, path string) error {
	counter := sink.NewCounter()

	sum, err := run(cmd, g, path, &o.decodeFlags, counter)
	if err != nil {
		return err
	}

	report := newStatsReport(sum, counter, o.top)
	if o.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return writeStatsTable(cmd.OutOrStdout(), report)
}

func newStatsReport(sum pipeline.Summary, counter *sink.Counter, top int) statsReport {
	stats := counter.Snapshot()

	r := statsReport{
		Records:        sum.Records,
		Packets:        sum.Packets,
		Skipped:        make(map[string]int, len(sum.Skipped)),
		Truncated:      sum.Truncated,
		TruncatedAfter: sum.TruncatedAfter,
		PayloadBytes:   stats.Bytes,
		CapturedBytes:  stats.Captured,
		Lost:           stats.Lost,
		ByTransport:    stats.ByTransport,
		VLANs:          stats.VLANs,
		TopFlows:       counter.TopFlows(top),
	}
	for reason, n := range sum.Skipped {
		r.Skipped[string(reason)] = n
	}
	if stats.Packets > 0 {
		first, last := stats.First.UTC(), stats.Last.UTC()
		r.First, r.Last = &first, &last
	}
	return r
}

func writeStatsTable(out io.Writer, r statsReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Records:\t%d\n", r.Records)
	fmt.Fprintf(w, "Packets:\t%d\n", r.Packets)
	fmt.Fprintf(w, "Payload bytes:\t%d (captured %d)\n", r.PayloadBytes, r.CapturedBytes)
	if r.Lost > 0 {
		fmt.Fprintf(w, "Lost (ERF):\t%d\n", r.Lost)
	}
	if r.First != nil {
		fmt.Fprintf(w, "Time span:\t%s .. %s (%s)\n",
			r.First.Format(time.RFC3339Nano), r.Last.Format(time.RFC3339Nano), r.Last.Sub(*r.First))
	}
	if r.Truncated {
		fmt.Fprintf(w, "Truncated:\tafter %d complete records\n", r.TruncatedAfter)
	}

	for _, k := range sortedKeys(r.ByTransport) {
		fmt.Fprintf(w, "Transport %s:\t%d\n", k, r.ByTransport[k])
	}
	for _, k := range sortedKeys(r.Skipped) {
		fmt.Fprintf(w, "Skipped %s:\t%d\n", k, r.Skipped[k])
	}

	vlans := make([]int, 0, len(r.VLANs))
	for id := range r.VLANs {
		vlans = append(vlans, int(id))
	}
	sort.Ints(vlans)
	for _, id := range vlans {
		fmt.Fprintf(w, "VLAN %d:\t%d\n", id, r.VLANs[uint16(id)])
	}

	if len(r.TopFlows) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "FLOW\tPACKETS\tBYTES")
		for _, f := range r.TopFlows {
			fmt.Fprintf(w, "%s\t%d\t%d\n", f.Flow, f.Packets, f.Bytes)
		}
	}
	return w.Flush()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
