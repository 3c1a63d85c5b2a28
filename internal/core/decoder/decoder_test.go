package decoder

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/erfreader/internal/core"
	"firestige.xyz/erfreader/internal/erftest"
)

func TestStandardDecoderDecodeTCP(t *testing.T) {
	frame := erftest.Packet{
		SrcIP: "192.168.1.1", DstIP: "192.168.1.2",
		SrcPort: 5000, DstPort: 80,
		TCPOptions: true,
		Payload:    []byte("GET / HTTP/1.1\r\n"),
	}.Frame()

	var pkt core.DecodedPacket
	if err := NewStandardDecoder(Config{}).Decode(frame, 0, &pkt); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	// Cross-check against gopacket's own layer decoding
	ref := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	tcp, ok := ref.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok {
		t.Fatal("gopacket did not decode a TCP layer")
	}
	if !bytes.Equal(pkt.Payload, tcp.Payload) {
		t.Errorf("Expected payload %q, got %q", tcp.Payload, pkt.Payload)
	}
	if pkt.PayloadOffset != 14+20+24 {
		t.Errorf("Expected payload offset %d, got %d", 14+20+24, pkt.PayloadOffset)
	}
	if pkt.SrcAddr != 0xC0A80101 || pkt.DstAddr != 0xC0A80102 {
		t.Errorf("Unexpected addresses 0x%08X > 0x%08X", pkt.SrcAddr, pkt.DstAddr)
	}
	if pkt.SrcPort != uint16(tcp.SrcPort) || pkt.DstPort != uint16(tcp.DstPort) {
		t.Errorf("Expected ports %d>%d, got %d>%d", tcp.SrcPort, tcp.DstPort, pkt.SrcPort, pkt.DstPort)
	}
	if !bytes.Equal(pkt.Frame, frame) {
		t.Error("Expected Frame to reference the decoded frame")
	}
}

func TestStandardDecoderPaddedFrame(t *testing.T) {
	// A 1-byte UDP payload is padded to the 60-byte Ethernet minimum; the
	// payload length must come from the UDP header, not the frame size.
	frame := erftest.Packet{
		SrcIP: "10.0.0.1", DstIP: "10.0.0.2",
		SrcPort: 53, DstPort: 5353,
		UDP:     true,
		Payload: []byte{0x42},
	}.Frame()
	if len(frame) != 60 {
		t.Fatalf("Expected padded 60-byte frame, got %d", len(frame))
	}

	var pkt core.DecodedPacket
	if err := NewStandardDecoder(Config{IncludeUDP: true}).Decode(frame, 0, &pkt); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if pkt.Length != 1 || !bytes.Equal(pkt.Payload, []byte{0x42}) {
		t.Errorf("Expected 1 payload byte, got %d %v", pkt.Length, pkt.Payload)
	}
}

func TestStandardDecoderVLANOffset(t *testing.T) {
	plain := erftest.Packet{
		SrcIP: "10.0.0.1", DstIP: "10.0.0.2",
		SrcPort: 1000, DstPort: 2000,
		UDP:     true,
		Payload: []byte("vlan payload"),
	}
	tagged := plain
	tagged.VLAN = true
	tagged.VLANID = 100

	d := NewStandardDecoder(Config{IncludeUDP: true})

	var p1, p2 core.DecodedPacket
	if err := d.Decode(plain.Frame(), 0, &p1); err != nil {
		t.Fatalf("Decode plain failed: %v", err)
	}
	if err := d.Decode(tagged.Frame(), 0, &p2); err != nil {
		t.Fatalf("Decode tagged failed: %v", err)
	}

	if p2.PayloadOffset-p1.PayloadOffset != 4 {
		t.Errorf("Expected VLAN to advance the payload by 4, got %d", p2.PayloadOffset-p1.PayloadOffset)
	}
	if p2.EtherType != 0x0800 {
		t.Errorf("Expected inner EtherType 0x0800, got 0x%04x", p2.EtherType)
	}
	if !p2.HasVLAN || p2.VLANID != 100 {
		t.Errorf("Expected VLAN 100, got %d", p2.VLANID)
	}
	if !bytes.Equal(p1.Payload, p2.Payload) {
		t.Errorf("Expected identical payloads, got %q and %q", p1.Payload, p2.Payload)
	}
}

func TestStandardDecoderBaseOffset(t *testing.T) {
	frame := erftest.Packet{SrcIP: "10.0.0.1", DstIP: "10.0.0.2", Payload: []byte("x")}.Frame()

	var pkt core.DecodedPacket
	if err := NewStandardDecoder(Config{}).Decode(frame, 10, &pkt); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if pkt.PayloadOffset != 10+14+20+20 {
		t.Errorf("Expected payload offset %d, got %d", 10+14+20+20, pkt.PayloadOffset)
	}
}

func TestStandardDecoderSkips(t *testing.T) {
	tests := []struct {
		name   string
		frame  []byte
		reason core.SkipReason
	}{
		{"arp", erftest.ARPFrame(), core.SkipEtherType},
		{"udp disabled", erftest.Packet{SrcIP: "10.0.0.1", DstIP: "10.0.0.2", UDP: true}.Frame(), core.SkipUDPDisabled},
		{"ipv6 icmp", erftest.IPv6Frame(layers.IPProtocolICMPv6, make([]byte, 8)), core.SkipIPv6NextHeader},
		{"empty", nil, core.SkipMalformed},
	}

	d := NewStandardDecoder(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pkt core.DecodedPacket
			err := d.Decode(tt.frame, 0, &pkt)

			var skip *core.SkipError
			if !errors.As(err, &skip) {
				t.Fatalf("Expected SkipError, got %v", err)
			}
			if skip.Reason != tt.reason {
				t.Errorf("Expected reason %s, got %s", tt.reason, skip.Reason)
			}
		})
	}
}

func TestStandardDecoderFatal(t *testing.T) {
	tests := map[string][]byte{
		"ipv4 more fragments": erftest.Packet{
			SrcIP: "10.0.0.1", DstIP: "10.0.0.2",
			Flags: layers.IPv4MoreFragments,
		}.Frame(),
		"ipv6 tcp":      erftest.IPv6Frame(layers.IPProtocolTCP, make([]byte, 20)),
		"ipv6 routing":  erftest.IPv6Frame(layers.IPProtocolIPv6Routing, make([]byte, 8)),
		"ipv6 fragment": erftest.IPv6Frame(layers.IPProtocolIPv6Fragment, make([]byte, 8)),
	}

	d := NewStandardDecoder(Config{IncludeUDP: true})
	for name, frame := range tests {
		t.Run(name, func(t *testing.T) {
			var pkt core.DecodedPacket
			err := d.Decode(frame, 0, &pkt)
			if !errors.Is(err, core.ErrUnsupportedFeature) {
				t.Errorf("Expected ErrUnsupportedFeature, got %v", err)
			}
		})
	}
}

type matchFunc func([]byte) bool

func (f matchFunc) Match(frame []byte) bool { return f(frame) }

func TestStandardDecoderFilter(t *testing.T) {
	frame := erftest.Packet{SrcIP: "10.0.0.1", DstIP: "10.0.0.2", SrcPort: 1, DstPort: 2}.Frame()

	var seen []byte
	d := NewStandardDecoder(Config{Filter: matchFunc(func(f []byte) bool {
		seen = f
		return false
	})})

	var pkt core.DecodedPacket
	err := d.Decode(frame, 0, &pkt)
	var skip *core.SkipError
	if !errors.As(err, &skip) || skip.Reason != core.SkipFiltered {
		t.Errorf("Expected filtered skip, got %v", err)
	}
	if !bytes.Equal(seen, frame) {
		t.Error("Expected the filter to see the whole Ethernet frame")
	}
}

func TestStandardDecoderIdempotent(t *testing.T) {
	frame := erftest.Packet{
		SrcIP: "172.16.0.1", DstIP: "172.16.0.2",
		SrcPort: 4000, DstPort: 4001,
		Payload: []byte("same bytes, same packet"),
	}.Frame()

	d := NewStandardDecoder(Config{})
	var first, second core.DecodedPacket
	if err := d.Decode(frame, 0, &first); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if err := d.Decode(frame, 0, &second); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if first.SrcAddr != second.SrcAddr || first.DstAddr != second.DstAddr ||
		first.Length != second.Length || first.PayloadOffset != second.PayloadOffset {
		t.Errorf("Expected identical decodes, got %+v and %+v", first, second)
	}
}

func BenchmarkStandardDecoderDecode(b *testing.B) {
	frame := erftest.Packet{
		SrcIP: "192.168.1.1", DstIP: "192.168.1.2",
		SrcPort: 5000, DstPort: 5001,
		Payload: make([]byte, 512),
	}.Frame()
	d := NewStandardDecoder(Config{})

	var pkt core.DecodedPacket
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pkt.Reset()
		if err := d.Decode(frame, 0, &pkt); err != nil {
			b.Fatal(err)
		}
	}
}
