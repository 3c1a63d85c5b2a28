package filter

import "firestige.xyz/erfreader/internal/core/decoder"

// Chain matches a frame only when every filter in it does. Nil entries
// are dropped.
type Chain struct {
	filters []decoder.FrameFilter
}

func NewChain(filters ...decoder.FrameFilter) *Chain {
	c := &Chain{filters: make([]decoder.FrameFilter, 0, len(filters))}
	for _, f := range filters {
		if f == nil {
			continue
		}
		if b, ok := f.(*BPF); ok && b == nil {
			continue
		}
		c.filters = append(c.filters, f)
	}
	return c
}

func (c *Chain) Match(frame []byte) bool {
	for _, f := range c.filters {
		if !f.Match(frame) {
			return false
		}
	}
	return true
}

// Len returns the number of active filters.
func (c *Chain) Len() int {
	return len(c.filters)
}

// Filter returns c as a decoder filter, or nil when c is empty so the
// decoder skips filtering altogether.
func (c *Chain) Filter() decoder.FrameFilter {
	if len(c.filters) == 0 {
		return nil
	}
	return c
}
