// Package decoder implements the L2-L4 protocol walk over ERF Ethernet frames.
package decoder

import "firestige.xyz/erfreader/internal/core"

// Decoder decodes one Ethernet frame into pkt.
//
// A nil error means pkt holds a packet for the sink. Errors matching
// core.ErrSkipped drop the record only; any other error aborts the run.
type Decoder interface {
	Decode(frame []byte, base int, pkt *core.DecodedPacket) error
}

// FrameFilter selects Ethernet frames before they are decoded.
type FrameFilter interface {
	Match(frame []byte) bool
}

// Config controls the decoder.
type Config struct {
	IncludeUDP bool        // Decode and forward UDP segments, TCP only when false
	Filter     FrameFilter // Optional, nil accepts every frame
}

// StandardDecoder walks Ethernet → VLAN → IPv4/IPv6 → TCP/UDP.
type StandardDecoder struct {
	cfg Config
}

// NewStandardDecoder creates a decoder for cfg.
func NewStandardDecoder(cfg Config) *StandardDecoder {
	return &StandardDecoder{cfg: cfg}
}

// Decode decodes frame, which starts at offset base of the record buffer,
// into pkt. Payload offsets stored in pkt are relative to the record buffer.
func (d *StandardDecoder) Decode(frame []byte, base int, pkt *core.DecodedPacket) error {
	if d.cfg.Filter != nil && !d.cfg.Filter.Match(frame) {
		return core.Skip(core.SkipFiltered)
	}

	pkt.Frame = frame

	etherType, off, err := decodeEthernet(frame, pkt)
	if err != nil {
		return err
	}

	switch etherType {
	case etherTypeIPv4:
		err = d.decodeIPv4(frame, off, pkt)
	case etherTypeIPv6:
		err = decodeIPv6(frame, off, pkt)
	default:
		// ARP, LLDP, stacked VLAN tags, ...
		return core.Skip(core.SkipEtherType)
	}
	if err != nil {
		return err
	}

	pkt.PayloadOffset += base
	return nil
}

// setPayload points pkt at length bytes of frame starting at off. The view
// is clipped to the captured bytes; Length keeps the header-derived count.
func setPayload(frame []byte, off, length int, pkt *core.DecodedPacket) error {
	if length < 0 {
		return core.Malformed(core.ErrNegativeLength)
	}
	if off > len(frame) {
		return core.Malformed(core.ErrPacketTooShort)
	}

	end := off + length
	if end > len(frame) {
		end = len(frame)
	}

	pkt.Payload = frame[off:end:end]
	pkt.PayloadOffset = off
	pkt.Length = length
	return nil
}
