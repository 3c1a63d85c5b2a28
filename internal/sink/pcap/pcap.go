// Package pcap implements a sink that exports the Ethernet frames of
// decoded packets to a pcap file.
package pcap

import (
	"bufio"
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/erfreader/internal/core"
	"firestige.xyz/erfreader/internal/sink"
)

const (
	Name           = "pcap"
	defaultSnapLen = 65535
)

// Config represents pcap sink options.
type Config struct {
	Path    string `mapstructure:"path"`    // required
	SnapLen int    `mapstructure:"snaplen"` // default 65535
	// Micros writes microsecond timestamps for tools that cannot read the
	// nanosecond pcap variant.
	Micros bool `mapstructure:"micros"`
}

// Sink writes every packet's frame as one pcap record.
type Sink struct {
	path    string
	snapLen int

	f  *os.File
	bw *bufio.Writer
	w  *pcapgo.Writer

	written int
}

func init() {
	sink.Register(Name, func(options map[string]any) (sink.Sink, error) {
		var cfg Config
		if err := sink.DecodeOptions(options, &cfg); err != nil {
			return nil, err
		}
		return New(cfg)
	})
}

// New creates the output file and writes the pcap file header.
func New(cfg Config) (*Sink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.SnapLen <= 0 {
		cfg.SnapLen = defaultSnapLen
	}

	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcap file %s: %w", cfg.Path, err)
	}
	bw := bufio.NewWriter(f)

	var w *pcapgo.Writer
	if cfg.Micros {
		w = pcapgo.NewWriter(bw)
	} else {
		w = pcapgo.NewWriterNanos(bw)
	}
	if err := w.WriteFileHeader(uint32(cfg.SnapLen), layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}

	return &Sink{
		path:    cfg.Path,
		snapLen: cfg.SnapLen,
		f:       f,
		bw:      bw,
		w:       w,
	}, nil
}

func (s *Sink) Send(pkt *core.DecodedPacket) error {
	data := pkt.Frame
	if len(data) > s.snapLen {
		data = data[:s.snapLen]
	}

	length := int(pkt.WireLength)
	if length < len(pkt.Frame) {
		length = len(pkt.Frame)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     pkt.Time(),
		CaptureLength: len(data),
		Length:        length,
	}
	if err := s.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("write pcap record %d: %w", pkt.Record, err)
	}
	s.written++
	return nil
}

// Written returns the number of frames exported so far.
func (s *Sink) Written() int {
	return s.written
}

func (s *Sink) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.bw.Flush()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	s.f = nil
	return err
}
