// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/erfreader/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
)

// decodeUDP decodes the UDP header at off and locates its payload.
func decodeUDP(frame []byte, off int, pkt *core.DecodedPacket) error {
	if len(frame) < off+udpHeaderLen {
		return core.Malformed(core.ErrPacketTooShort)
	}
	udp := frame[off:]

	pkt.Transport = core.TransportUDP

	// Source Port (offset 0), Destination Port (offset 2)
	pkt.SrcPort = binary.BigEndian.Uint16(udp[0:2])
	pkt.DstPort = binary.BigEndian.Uint16(udp[2:4])

	// Length (2 bytes at offset 4) - includes header and data
	length := int(binary.BigEndian.Uint16(udp[4:6])) - udpHeaderLen

	return setPayload(frame, off+udpHeaderLen, length, pkt)
}

// decodeTCP decodes the TCP header at off. segmentLen is the IP payload
// length; the TCP payload is what remains after the header and options.
func decodeTCP(frame []byte, off, segmentLen int, pkt *core.DecodedPacket) error {
	if len(frame) < off+tcpHeaderMinLen {
		return core.Malformed(core.ErrPacketTooShort)
	}
	tcp := frame[off:]

	pkt.Transport = core.TransportTCP

	// Source Port (offset 0), Destination Port (offset 2)
	pkt.SrcPort = binary.BigEndian.Uint16(tcp[0:2])
	pkt.DstPort = binary.BigEndian.Uint16(tcp[2:4])

	// Data Offset (upper 4 bits of byte 12), in 32-bit words
	headerLen := int(tcp[12]>>4) * 4
	if headerLen < tcpHeaderMinLen || len(tcp) < headerLen {
		return core.Malformed(core.ErrPacketTooShort)
	}

	return setPayload(frame, off+headerLen, segmentLen-headerLen, pkt)
}
