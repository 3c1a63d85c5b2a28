package sink

import (
	"time"

	"firestige.xyz/erfreader/internal/core"
)

// Record is the serialized form of a decoded packet shared by the
// console and kafka sinks.
type Record struct {
	Record      int       `json:"record"`
	Timestamp   time.Time `json:"timestamp"`
	Transport   string    `json:"transport"`
	SrcAddr     string    `json:"src_addr"`
	DstAddr     string    `json:"dst_addr"`
	SrcPort     uint16    `json:"src_port"`
	DstPort     uint16    `json:"dst_port"`
	VLAN        *uint16   `json:"vlan,omitempty"`
	WireLength  uint16    `json:"wire_length"`
	LossCounter uint16    `json:"loss_counter,omitempty"`
	Offset      int       `json:"payload_offset"`
	Length      int       `json:"payload_length"`
	Captured    int       `json:"payload_captured"`
	Payload     []byte    `json:"payload,omitempty"` // base64 in JSON
}

// NewRecord copies the fields of pkt. The payload is copied only when
// withPayload is set.
func NewRecord(pkt *core.DecodedPacket, withPayload bool) Record {
	r := Record{
		Record:      pkt.Record,
		Timestamp:   pkt.Time(),
		Transport:   pkt.Transport.String(),
		SrcAddr:     core.FormatAddr(pkt.SrcAddr),
		DstAddr:     core.FormatAddr(pkt.DstAddr),
		SrcPort:     pkt.SrcPort,
		DstPort:     pkt.DstPort,
		WireLength:  pkt.WireLength,
		LossCounter: pkt.LossCounter,
		Offset:      pkt.PayloadOffset,
		Length:      pkt.Length,
		Captured:    len(pkt.Payload),
	}
	if pkt.HasVLAN {
		vlan := pkt.VLANID
		r.VLAN = &vlan
	}
	if withPayload && len(pkt.Payload) > 0 {
		r.Payload = append([]byte(nil), pkt.Payload...)
	}
	return r
}
