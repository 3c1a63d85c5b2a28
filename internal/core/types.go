// Package core defines core types with zero external dependencies.
package core

// RecordHeaderLen is the fixed size of an ERF record header on the wire.
const RecordHeaderLen = 16

// Record types carried in the low 7 bits of the type byte.
const (
	RecordTypeEthernet uint8 = 2

	recordTypeMask    = 0x7F
	extensionFlagMask = 0x80
)

// RecordHeader is the fixed ERF record header, already converted to host order.
type RecordHeader struct {
	Fraction    uint32 // Fractional seconds, implicit denominator 2^32
	Seconds     uint32 // Whole seconds since the Unix epoch
	TypeByte    uint8  // bit 7 = extension flag, bits 0-6 = record type
	Flags       uint8
	TotalLength uint16 // Header + payload, always >= RecordHeaderLen
	LossCounter uint16 // Records lost since the previous one
	WireLength  uint16
}

// Type returns the record type without the extension flag.
func (h RecordHeader) Type() uint8 { return h.TypeByte & recordTypeMask }

// HasExtensions reports whether extension blocks precede the frame.
func (h RecordHeader) HasExtensions() bool { return h.TypeByte&extensionFlagMask != 0 }

// PayloadLength returns the number of bytes following the header.
func (h RecordHeader) PayloadLength() int { return int(h.TotalLength) - RecordHeaderLen }

// TransportKind identifies the L4 protocol of a decoded packet.
type TransportKind uint8

const (
	TransportNone TransportKind = iota
	TransportTCP
	TransportUDP
)

func (k TransportKind) String() string {
	switch k {
	case TransportTCP:
		return "tcp"
	case TransportUDP:
		return "udp"
	default:
		return "none"
	}
}

// Outcome is the result kind of one reader iteration.
type Outcome uint8

const (
	OutcomePacket Outcome = iota
	OutcomeSkipped
	OutcomeEndOfStream
	OutcomeTruncated
)

func (o Outcome) String() string {
	switch o {
	case OutcomePacket:
		return "packet"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeEndOfStream:
		return "end_of_stream"
	case OutcomeTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// SkipReason names why a single record was dropped.
type SkipReason string

const (
	SkipRecordType     SkipReason = "record_type"      // Not an Ethernet record
	SkipEtherType      SkipReason = "ethertype"        // Not IPv4/IPv6 after VLAN unwrap
	SkipIPProtocol     SkipReason = "ip_protocol"      // IPv4 protocol other than TCP/UDP
	SkipIPv6NextHeader SkipReason = "ipv6_next_header" // IPv6 next header we do not walk
	SkipUDPDisabled    SkipReason = "udp_disabled"
	SkipFragment       SkipReason = "fragment" // Trailing IPv4 fragment
	SkipFiltered       SkipReason = "filtered"
	SkipMalformed      SkipReason = "malformed"
)
