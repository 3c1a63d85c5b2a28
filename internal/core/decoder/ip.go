// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/erfreader/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = 40

	// IPv4 flags/fragment offset field
	ipv4FlagMoreFragments = 0x2000
	ipv4FragmentOffset    = 0x1FFF

	// Protocol / next header numbers
	protocolHopByHop = 0
	protocolTCP      = 6
	protocolUDP      = 17
	protocolRouting  = 43
	protocolFragment = 44
)

// decodeIPv4 decodes the IPv4 header at off and dispatches to TCP or UDP.
func (d *StandardDecoder) decodeIPv4(frame []byte, off int, pkt *core.DecodedPacket) error {
	if len(frame) < off+ipv4HeaderMinLen {
		return core.Malformed(core.ErrPacketTooShort)
	}
	ip := frame[off:]

	// IHL (Internet Header Length) - lower 4 bits of first byte, in 32-bit words
	headerLen := int(ip[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(ip) < headerLen {
		return core.Malformed(core.ErrPacketTooShort)
	}

	// Protocol (1 byte at offset 9)
	protocol := ip[9]
	if protocol != protocolTCP && protocol != protocolUDP {
		return core.Skip(core.SkipIPProtocol)
	}

	// Flags and Fragment Offset (2 bytes at offset 6)
	flagsOffset := binary.BigEndian.Uint16(ip[6:8])
	if flagsOffset&ipv4FlagMoreFragments != 0 {
		return &core.UnsupportedFeatureError{Feature: "ipv4 fragmentation"}
	}
	if flagsOffset&ipv4FragmentOffset != 0 {
		// Last fragment of a datagram: no transport header to read.
		return core.Skip(core.SkipFragment)
	}

	// Source IP (offset 12) and Destination IP (offset 16), host order
	pkt.SrcAddr = uint64(binary.BigEndian.Uint32(ip[12:16]))
	pkt.DstAddr = uint64(binary.BigEndian.Uint32(ip[16:20]))

	// Total Length (2 bytes at offset 2)
	segmentLen := int(binary.BigEndian.Uint16(ip[2:4])) - headerLen
	if segmentLen < 0 {
		return core.Malformed(core.ErrNegativeLength)
	}

	if protocol == protocolUDP {
		// With UDP disabled the datagram is skipped, never handed to the
		// TCP decoder: an 8-byte UDP header read as TCP yields a bogus
		// data offset and payload.
		if !d.cfg.IncludeUDP {
			return core.Skip(core.SkipUDPDisabled)
		}
		return decodeUDP(frame, off+headerLen, pkt)
	}
	return decodeTCP(frame, off+headerLen, segmentLen, pkt)
}

// decodeIPv6 inspects the IPv6 next header. No IPv6 packet is forwarded:
// TCP and extension headers abort the run, everything else is skipped.
func decodeIPv6(frame []byte, off int, pkt *core.DecodedPacket) error {
	if len(frame) < off+ipv6HeaderLen {
		return core.Malformed(core.ErrPacketTooShort)
	}

	// Next Header (1 byte at offset 6)
	switch frame[off+6] {
	case protocolTCP:
		return &core.UnsupportedFeatureError{Feature: "ipv6 tcp"}
	case protocolHopByHop, protocolRouting, protocolFragment:
		return &core.UnsupportedFeatureError{Feature: "ipv6 extension header"}
	default:
		return core.Skip(core.SkipIPv6NextHeader)
	}
}
