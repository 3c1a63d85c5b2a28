// Package core defines core data structures with zero external dependencies.
package core

import (
	"fmt"
	"time"
)

// DecodedPacket is the result of decoding one ERF Ethernet record.
//
// Payload and Frame borrow the reader's record buffer and are only valid
// until the next call to Next. Use Clone to keep a packet around.
type DecodedPacket struct {
	Record      int   // 0-based index of the record in the stream
	Timestamp   int64 // Nanoseconds since the Unix epoch
	WireLength  uint16
	LossCounter uint16

	EtherType uint16
	VLANID    uint16
	HasVLAN   bool

	Transport TransportKind
	SrcAddr   uint64 // IPv4 address in host order, zero for IPv6
	DstAddr   uint64
	SrcPort   uint16
	DstPort   uint16

	Frame         []byte // Ethernet frame, zero-copy slice
	Payload       []byte // Application payload, zero-copy slice, may be shorter than Length on snapped captures
	PayloadOffset int    // Offset of Payload in the record buffer
	Length        int    // Payload length according to the transport header
}

// Reset clears p for reuse by the next record.
func (p *DecodedPacket) Reset() {
	*p = DecodedPacket{}
}

// Time returns the capture timestamp as a time.Time in UTC.
func (p *DecodedPacket) Time() time.Time {
	return time.Unix(0, p.Timestamp).UTC()
}

// Clone returns a copy of p that owns its Frame and Payload storage.
func (p *DecodedPacket) Clone() *DecodedPacket {
	c := *p
	if p.Frame != nil {
		c.Frame = append([]byte(nil), p.Frame...)
	}
	if p.Payload != nil {
		c.Payload = append([]byte(nil), p.Payload...)
	}
	return &c
}

// Flow renders the addressing of p as "src:port > dst:port".
func (p *DecodedPacket) Flow() string {
	return fmt.Sprintf("%s:%d > %s:%d", FormatAddr(p.SrcAddr), p.SrcPort, FormatAddr(p.DstAddr), p.DstPort)
}

// FormatAddr renders a host-order IPv4 address in dotted quad notation.
func FormatAddr(addr uint64) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}
