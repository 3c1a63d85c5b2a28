// Package sink delivers decoded packets to their consumers.
package sink

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/erfreader/internal/config"
	"firestige.xyz/erfreader/internal/core"
)

// Sink consumes decoded packets.
//
// The packet passed to Send borrows the reader's buffer and must not be
// retained after Send returns; use Clone to keep it. Returning
// core.ErrStop ends the run cleanly, any other error aborts it.
type Sink interface {
	Send(pkt *core.DecodedPacket) error
}

// Func adapts a function to a Sink.
type Func func(pkt *core.DecodedPacket) error

func (f Func) Send(pkt *core.DecodedPacket) error { return f(pkt) }

// Factory builds a sink from its options.
type Factory func(options map[string]any) (Sink, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a sink type available to New. Sink packages call it from
// init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Types returns the registered sink type names.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the sink described by cfg.
func New(cfg config.SinkConfig) (Sink, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownSink, cfg.Type)
	}

	s, err := factory(cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("sink %s: %w", cfg.Type, err)
	}
	return s, nil
}

// NewAll builds every configured sink and wraps them in a Multi. Sinks
// already built are closed when a later one fails.
func NewAll(cfgs []config.SinkConfig) (*Multi, error) {
	sinks := make([]Sink, 0, len(cfgs))
	for _, cfg := range cfgs {
		s, err := New(cfg)
		if err != nil {
			_ = NewMulti(sinks...).Close()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return NewMulti(sinks...), nil
}

// Close closes s when it implements io.Closer.
func Close(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// DecodeOptions decodes sink options into out, accepting the loosely typed
// values viper produces (numbers as strings, durations as "100ms").
func DecodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	return nil
}

// Multi fans a packet out to several sinks in order.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Send stops at the first sink that fails and returns its error unchanged,
// so core.ErrStop from any sink ends the run.
func (m *Multi) Send(pkt *core.DecodedPacket) error {
	for _, s := range m.sinks {
		if err := s.Send(pkt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := Close(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}
