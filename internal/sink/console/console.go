// Package console implements a sink that prints packets for humans or
// line-oriented JSON consumers.
package console

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"firestige.xyz/erfreader/internal/core"
	"firestige.xyz/erfreader/internal/sink"
)

const Name = "console"

// Config represents console sink options.
type Config struct {
	Format  string `mapstructure:"format"`  // "text" or "json", default "text"
	Payload bool   `mapstructure:"payload"` // include the payload (hex in text, base64 in json)
	Output  string `mapstructure:"output"`  // file path, default stdout
}

// Sink writes one line per packet.
type Sink struct {
	format  string
	payload bool

	w      *bufio.Writer
	closer io.Closer
	enc    *json.Encoder
}

func init() {
	sink.Register(Name, func(options map[string]any) (sink.Sink, error) {
		var cfg Config
		if err := sink.DecodeOptions(options, &cfg); err != nil {
			return nil, err
		}
		return Open(cfg)
	})
}

// Open creates a console sink writing to cfg.Output, or stdout.
func Open(cfg Config) (*Sink, error) {
	if cfg.Output == "" || cfg.Output == "-" {
		return New(os.Stdout, cfg)
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to create console output %s: %w", cfg.Output, err)
	}
	s, err := New(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// New creates a console sink writing to w.
func New(w io.Writer, cfg Config) (*Sink, error) {
	format := strings.ToLower(cfg.Format)
	switch format {
	case "":
		format = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid format %q, must be json or text", cfg.Format)
	}

	s := &Sink{
		format:  format,
		payload: cfg.Payload,
		w:       bufio.NewWriter(w),
	}
	s.enc = json.NewEncoder(s.w)
	return s, nil
}

func (s *Sink) Send(pkt *core.DecodedPacket) error {
	if pkt == nil {
		return fmt.Errorf("nil packet")
	}
	if s.format == "json" {
		return s.sendJSON(pkt)
	}
	return s.sendText(pkt)
}

func (s *Sink) sendJSON(pkt *core.DecodedPacket) error {
	if err := s.enc.Encode(sink.NewRecord(pkt, s.payload)); err != nil {
		return fmt.Errorf("json encode failed: %w", err)
	}
	return nil
}

func (s *Sink) sendText(pkt *core.DecodedPacket) error {
	fmt.Fprintf(s.w, "%s #%d %s %s len=%d",
		pkt.Time().Format("2006-01-02T15:04:05.000000000Z"),
		pkt.Record,
		pkt.Transport,
		pkt.Flow(),
		pkt.Length,
	)
	if pkt.HasVLAN {
		fmt.Fprintf(s.w, " vlan=%d", pkt.VLANID)
	}
	if len(pkt.Payload) < pkt.Length {
		fmt.Fprintf(s.w, " captured=%d", len(pkt.Payload))
	}
	if pkt.LossCounter > 0 {
		fmt.Fprintf(s.w, " lost=%d", pkt.LossCounter)
	}
	if s.payload && len(pkt.Payload) > 0 {
		fmt.Fprintf(s.w, " payload=%s", hex.EncodeToString(pkt.Payload))
	}
	_, err := s.w.WriteString("\n")
	return err
}

// Close flushes buffered output and closes the output file if the sink
// opened it.
func (s *Sink) Close() error {
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}
