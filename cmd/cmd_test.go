package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/erfreader/internal/core"
	"firestige.xyz/erfreader/internal/erftest"
)

func writeCapture(t *testing.T, records ...erftest.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.erf")
	require.NoError(t, os.WriteFile(path, erftest.Stream(records...), 0o644))
	return path
}

func tcp(seconds uint32, srcPort uint16, payload string) erftest.Record {
	return erftest.Record{
		Seconds:  seconds,
		Fraction: 1 << 31,
		Frame: erftest.Packet{
			SrcIP: "192.168.0.1", DstIP: "192.168.0.2",
			SrcPort: srcPort, DstPort: 80,
			Payload: []byte(payload),
		}.Frame(),
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDecodeConsole(t *testing.T) {
	path := writeCapture(t,
		tcp(1, 1234, "hi"),
		erftest.Record{Frame: erftest.ARPFrame()},
		tcp(2, 1235, "there"),
	)

	out, err := execute(t, "decode", path, "--sink", "console", "--payload")
	require.NoError(t, err)

	assert.Equal(t,
		"1970-01-01T00:00:01.500000000Z #0 tcp 192.168.0.1:1234 > 192.168.0.2:80 len=2 payload=6869\n"+
			"1970-01-01T00:00:02.500000000Z #2 tcp 192.168.0.1:1235 > 192.168.0.2:80 len=5 payload=7468657265\n",
		out)
}

func TestDecodeJSONWithLimit(t *testing.T) {
	path := writeCapture(t, tcp(1, 1, "a"), tcp(1, 2, "b"), tcp(1, 3, "c"))

	out, err := execute(t, "decode", path, "--format", "json", "--limit", "2")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &rec))
	assert.Equal(t, "tcp", rec["transport"])
	assert.EqualValues(t, 2, rec["src_port"])
	assert.EqualValues(t, 1, rec["payload_length"])
}

func TestDecodeFilter(t *testing.T) {
	path := writeCapture(t, tcp(1, 1000, "a"), tcp(1, 2000, "b"))

	out, err := execute(t, "decode", path, "--filter", "tcp src port 2000")
	require.NoError(t, err)
	assert.Contains(t, out, "192.168.0.1:2000")
	assert.NotContains(t, out, "192.168.0.1:1000")
}

func TestDecodeUDPFlag(t *testing.T) {
	udp := erftest.Record{Frame: erftest.Packet{
		SrcIP: "10.0.0.1", DstIP: "10.0.0.2",
		SrcPort: 53, DstPort: 5353, UDP: true,
		Payload: []byte("dns"),
	}.Frame()}
	path := writeCapture(t, udp)

	out, err := execute(t, "decode", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = execute(t, "decode", path, "--udp")
	require.NoError(t, err)
	assert.Contains(t, out, "udp 10.0.0.1:53 > 10.0.0.2:5353 len=3")
}

func TestDecodeUnsupportedFails(t *testing.T) {
	frag := erftest.Record{Frame: erftest.Packet{
		SrcIP: "10.0.0.1", DstIP: "10.0.0.2",
		Flags: layers.IPv4MoreFragments,
	}.Frame()}
	path := writeCapture(t, tcp(1, 1, "ok"), frag)

	out, err := execute(t, "decode", path)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.Contains(t, out, "192.168.0.1:1 > 192.168.0.2:80", "records before the failure are delivered")
}

func TestDecodeErrors(t *testing.T) {
	path := writeCapture(t, tcp(1, 1, "a"))

	_, err := execute(t, "decode", path, "--sink", "bogus")
	assert.ErrorIs(t, err, core.ErrUnknownSink)

	_, err = execute(t, "decode", path, "--sink", "pcap")
	assert.Error(t, err, "pcap sink needs a path")

	_, err = execute(t, "decode", path, "--sink", "kafka")
	assert.Error(t, err, "kafka sink needs brokers")

	_, err = execute(t, "decode", filepath.Join(t.TempDir(), "missing.erf"))
	assert.Error(t, err)

	_, err = execute(t, "decode", path, "--filter", "not a filter (")
	assert.Error(t, err)

	_, err = execute(t, "decode")
	assert.Error(t, err)
}

func TestDecodeToConsoleAndPcap(t *testing.T) {
	path := writeCapture(t, tcp(1, 1, "a"), tcp(1, 2, "b"))
	pcapPath := filepath.Join(t.TempDir(), "out.pcap")

	out, err := execute(t, "decode", path, "--sink", "console,pcap", "--pcap-file", pcapPath)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count([]byte(out), []byte("\n")))
	assert.Equal(t, 2, countPcap(t, pcapPath))
}

func TestExport(t *testing.T) {
	path := writeCapture(t,
		tcp(1, 1, "a"),
		erftest.Record{Frame: erftest.ARPFrame()},
		tcp(2, 2, "b"),
	)
	pcapPath := filepath.Join(t.TempDir(), "out.pcap")

	out, err := execute(t, "export", path, "-o", pcapPath)
	require.NoError(t, err)
	assert.Equal(t, "wrote 2 packets to "+pcapPath+"\n", out)
	assert.Equal(t, 2, countPcap(t, pcapPath))

	_, err = execute(t, "export", path)
	assert.Error(t, err, "--output is required")
}

func countPcap(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	n := 0
	for {
		_, _, err := r.ReadPacketData()
		if err != nil {
			break
		}
		n++
	}
	return n
}

func TestStatsJSON(t *testing.T) {
	path := writeCapture(t,
		tcp(1, 1, "aaaa"),
		tcp(2, 1, "bb"),
		tcp(3, 2, "c"),
		erftest.Record{Frame: erftest.ARPFrame()},
	)

	out, err := execute(t, "stats", path, "--json", "--top", "1")
	require.NoError(t, err)

	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 4, report.Records)
	assert.Equal(t, 3, report.Packets)
	assert.Equal(t, 7, report.PayloadBytes)
	assert.Equal(t, 1, report.Skipped[string(core.SkipEtherType)])
	assert.Equal(t, 3, report.ByTransport["tcp"])
	require.Len(t, report.TopFlows, 1)
	assert.Equal(t, "192.168.0.1:1 > 192.168.0.2:80", report.TopFlows[0].Flow)
	assert.Equal(t, 6, report.TopFlows[0].Bytes)
	require.NotNil(t, report.First)
	assert.Equal(t, int64(1), report.First.Unix())
}

func TestStatsTable(t *testing.T) {
	path := writeCapture(t, tcp(1, 1, "aaaa"))

	out, err := execute(t, "stats", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Packets:")
	assert.Contains(t, out, "Transport tcp:")
	assert.Contains(t, out, "192.168.0.1:1 > 192.168.0.2:80")
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "erfreader:")
	assert.Contains(t, out, "include_udp: false")

	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("erfreader:\n  decoder:\n    include_udp: true\n"), 0o644))
	out, err = execute(t, "config", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "include_udp: true")

	_, err = execute(t, "config", "--log-level", "loud")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
