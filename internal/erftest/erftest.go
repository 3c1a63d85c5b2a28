// Package erftest builds ERF records and Ethernet frames for tests.
package erftest

import (
	"encoding/binary"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/erfreader/internal/core"
)

var (
	SrcMAC = net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	DstMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
)

// Packet describes an Ethernet/IPv4/TCP-or-UDP frame.
type Packet struct {
	SrcIP   string
	DstIP   string
	SrcPort uint16
	DstPort uint16
	UDP     bool

	VLAN   bool
	VLANID uint16

	Flags      layers.IPv4Flag
	FragOffset uint16

	// Adds an MSS option so the TCP header is 24 bytes long.
	TCPOptions bool

	Payload []byte
}

// Frame serializes p with gopacket. Lengths and checksums are computed, and
// short frames are padded to the Ethernet minimum.
func (p Packet) Frame() []byte {
	eth := &layers.Ethernet{
		SrcMAC:       SrcMAC,
		DstMAC:       DstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:    4,
		IHL:        5,
		TTL:        64,
		Id:         0x1234,
		Flags:      p.Flags,
		FragOffset: p.FragOffset,
		Protocol:   layers.IPProtocolTCP,
		SrcIP:      net.ParseIP(p.SrcIP).To4(),
		DstIP:      net.ParseIP(p.DstIP).To4(),
	}

	var all []gopacket.SerializableLayer
	all = append(all, eth)
	if p.VLAN {
		eth.EthernetType = layers.EthernetTypeDot1Q
		all = append(all, &layers.Dot1Q{
			VLANIdentifier: p.VLANID,
			Type:           layers.EthernetTypeIPv4,
		})
	}
	all = append(all, ip)

	if p.UDP {
		ip.Protocol = layers.IPProtocolUDP
		udp := &layers.UDP{SrcPort: layers.UDPPort(p.SrcPort), DstPort: layers.UDPPort(p.DstPort)}
		_ = udp.SetNetworkLayerForChecksum(ip)
		all = append(all, udp)
	} else {
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(p.SrcPort),
			DstPort: layers.TCPPort(p.DstPort),
			Seq:     1,
			Ack:     2,
			ACK:     true,
			PSH:     true,
			Window:  8192,
		}
		if p.TCPOptions {
			tcp.Options = []layers.TCPOption{
				{OptionType: layers.TCPOptionKindMSS, OptionLength: 4, OptionData: []byte{0x05, 0xB4}},
			}
		}
		_ = tcp.SetNetworkLayerForChecksum(ip)
		all = append(all, tcp)
	}
	all = append(all, gopacket.Payload(p.Payload))

	return serialize(all...)
}

// IPv6Frame serializes an Ethernet/IPv6 frame with the given next header.
// The bytes after the IPv6 header are payload verbatim.
func IPv6Frame(next layers.IPProtocol, payload []byte) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       SrcMAC,
		DstMAC:       DstMAC,
		EthernetType: layers.EthernetTypeIPv6,
	}
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: next,
		HopLimit:   64,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	return serialize(eth, ip, gopacket.Payload(payload))
}

// ARPFrame serializes an Ethernet/ARP request.
func ARPFrame() []byte {
	eth := &layers.Ethernet{
		SrcMAC:       SrcMAC,
		DstMAC:       layers.EthernetBroadcast,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   SrcMAC,
		SourceProtAddress: net.IPv4(192, 168, 1, 1).To4(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    net.IPv4(192, 168, 1, 2).To4(),
	}
	return serialize(eth, arp)
}

func serialize(all ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, all...); err != nil {
		panic(err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

// Record describes one ERF record around Frame.
type Record struct {
	Seconds  uint32
	Fraction uint32
	Type     uint8 // Defaults to Ethernet when zero
	Loss     uint16

	// Number of chained extension blocks; sets the extension flag when > 0.
	Extensions int

	Frame []byte
}

// Bytes encodes r: little-endian timestamp, everything else in network order.
func (r Record) Bytes() []byte {
	typ := r.Type
	if typ == 0 {
		typ = core.RecordTypeEthernet
	}

	var body []byte
	if r.Extensions > 0 {
		typ |= 0x80
		for i := 0; i < r.Extensions; i++ {
			block := make([]byte, 8)
			block[0] = 0x11 // arbitrary extension type
			if i < r.Extensions-1 {
				block[0] |= 0x80
			}
			body = append(body, block...)
		}
	}
	if typ&0x7F == core.RecordTypeEthernet {
		body = append(body, 0x00, 0x00) // ethernet pad
	}
	body = append(body, r.Frame...)

	hdr := make([]byte, core.RecordHeaderLen)
	binary.LittleEndian.PutUint32(hdr[0:4], r.Fraction)
	binary.LittleEndian.PutUint32(hdr[4:8], r.Seconds)
	hdr[8] = typ
	binary.BigEndian.PutUint16(hdr[10:12], uint16(len(hdr)+len(body)))
	binary.BigEndian.PutUint16(hdr[12:14], r.Loss)
	binary.BigEndian.PutUint16(hdr[14:16], uint16(len(r.Frame)+4))

	return append(hdr, body...)
}

// Stream concatenates records into one ERF byte stream.
func Stream(records ...Record) []byte {
	var out []byte
	for _, r := range records {
		out = append(out, r.Bytes()...)
	}
	return out
}

// FrameOffset returns the offset of the Ethernet frame inside the record
// payload (the bytes after the 16-byte header).
func (r Record) FrameOffset() int {
	return 8*r.Extensions + 2
}
