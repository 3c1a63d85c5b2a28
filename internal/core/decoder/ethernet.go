// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/erfreader/internal/core"
)

const (
	// Ethernet constants
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4

	// EtherType values
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
	etherTypeVLAN = 0x8100
)

// decodeEthernet decodes the Ethernet header and unwraps a single 802.1Q tag.
// Returns the effective EtherType and the offset of the network header.
func decodeEthernet(frame []byte, pkt *core.DecodedPacket) (uint16, int, error) {
	if len(frame) < ethernetHeaderLen {
		return 0, 0, core.Malformed(core.ErrPacketTooShort)
	}

	// Dst MAC [0:6], Src MAC [6:12], EtherType [12:14]
	etherType := binary.BigEndian.Uint16(frame[12:14])
	offset := ethernetHeaderLen

	// One tag only: an inner 0x8100 falls through to the EtherType skip.
	if etherType == etherTypeVLAN {
		if len(frame) < offset+vlanHeaderLen {
			return 0, 0, core.Malformed(core.ErrPacketTooShort)
		}

		// VLAN header: 2 bytes TCI + 2 bytes EtherType
		tci := binary.BigEndian.Uint16(frame[offset : offset+2])
		pkt.VLANID = tci & 0x0FFF
		pkt.HasVLAN = true

		etherType = binary.BigEndian.Uint16(frame[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	pkt.EtherType = etherType
	return etherType, offset, nil
}
