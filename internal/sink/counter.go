package sink

import (
	"sort"
	"sync"
	"time"

	"firestige.xyz/erfreader/internal/core"
)

// FlowStats aggregates the packets of one address/port tuple.
type FlowStats struct {
	Flow    string `json:"flow"`
	Packets int    `json:"packets"`
	Bytes   int    `json:"bytes"`
}

// Stats is a snapshot of a Counter.
type Stats struct {
	Packets     int
	Bytes       int // transport payload bytes as announced by the headers
	Captured    int // payload bytes actually present in the capture
	ByTransport map[string]int
	VLANs       map[uint16]int
	First, Last time.Time
	Lost        int // sum of ERF loss counters
}

// Duration is the time between the first and the last packet.
func (s Stats) Duration() time.Duration {
	if s.Packets == 0 {
		return 0
	}
	return s.Last.Sub(s.First)
}

// Counter is a Sink that keeps traffic statistics in memory.
type Counter struct {
	mu    sync.Mutex
	stats Stats
	flows map[string]*FlowStats
}

func NewCounter() *Counter {
	return &Counter{
		stats: Stats{
			ByTransport: make(map[string]int),
			VLANs:       make(map[uint16]int),
		},
		flows: make(map[string]*FlowStats),
	}
}

func (c *Counter) Send(pkt *core.DecodedPacket) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := pkt.Time()
	if c.stats.Packets == 0 || ts.Before(c.stats.First) {
		c.stats.First = ts
	}
	if ts.After(c.stats.Last) {
		c.stats.Last = ts
	}

	c.stats.Packets++
	c.stats.Bytes += pkt.Length
	c.stats.Captured += len(pkt.Payload)
	c.stats.Lost += int(pkt.LossCounter)
	c.stats.ByTransport[pkt.Transport.String()]++
	if pkt.HasVLAN {
		c.stats.VLANs[pkt.VLANID]++
	}

	key := pkt.Flow()
	f, ok := c.flows[key]
	if !ok {
		f = &FlowStats{Flow: key}
		c.flows[key] = f
	}
	f.Packets++
	f.Bytes += pkt.Length
	return nil
}

// Snapshot returns a copy of the current statistics.
func (c *Counter) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.ByTransport = make(map[string]int, len(c.stats.ByTransport))
	for k, v := range c.stats.ByTransport {
		s.ByTransport[k] = v
	}
	s.VLANs = make(map[uint16]int, len(c.stats.VLANs))
	for k, v := range c.stats.VLANs {
		s.VLANs[k] = v
	}
	return s
}

// TopFlows returns up to n flows ordered by payload bytes, then packets,
// then flow name. n <= 0 returns all flows.
func (c *Counter) TopFlows(n int) []FlowStats {
	c.mu.Lock()
	flows := make([]FlowStats, 0, len(c.flows))
	for _, f := range c.flows {
		flows = append(flows, *f)
	}
	c.mu.Unlock()

	sort.Slice(flows, func(i, j int) bool {
		if flows[i].Bytes != flows[j].Bytes {
			return flows[i].Bytes > flows[j].Bytes
		}
		if flows[i].Packets != flows[j].Packets {
			return flows[i].Packets > flows[j].Packets
		}
		return flows[i].Flow < flows[j].Flow
	})
	if n > 0 && len(flows) > n {
		flows = flows[:n]
	}
	return flows
}
