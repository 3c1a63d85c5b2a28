// Package kafka implements a sink that publishes decoded packets to Kafka
// as JSON messages.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/erfreader/internal/core"
	"firestige.xyz/erfreader/internal/log"
	"firestige.xyz/erfreader/internal/sink"
)

const (
	Name = "kafka"

	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
	defaultWriteTimeout = 10 * time.Second

	// The sink hands the writer complete batches, so the writer only
	// lingers long enough to group them per partition.
	writerLinger = time.Millisecond
)

// Config represents Kafka sink options.
type Config struct {
	Brokers      []string      `mapstructure:"brokers"`       // required
	Topic        string        `mapstructure:"topic"`         // required
	BatchSize    int           `mapstructure:"batch_size"`    // messages per write, default 100
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // max age of a pending message, default 100ms
	Compression  string        `mapstructure:"compression"`   // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int           `mapstructure:"max_attempts"`  // optional, default 3
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // optional, default 10s
	Payload      bool          `mapstructure:"payload"`       // include the payload bytes
}

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink publishes one message per packet, keyed by flow. Messages are
// buffered and written BatchSize at a time; Close writes the remainder.
type Sink struct {
	config Config
	writer messageWriter

	pending []kafka.Message
	oldest  time.Time

	sentCount  atomic.Uint64
	errorCount atomic.Uint64
}

func init() {
	sink.Register(Name, func(options map[string]any) (sink.Sink, error) {
		cfg, err := ParseConfig(options)
		if err != nil {
			return nil, err
		}
		return New(cfg)
	})
}

// ParseConfig decodes and validates sink options, applying defaults.
func ParseConfig(options map[string]any) (Config, error) {
	cfg := Config{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
		WriteTimeout: defaultWriteTimeout,
	}
	if options == nil {
		return cfg, fmt.Errorf("kafka sink requires configuration")
	}
	if err := sink.DecodeOptions(options, &cfg); err != nil {
		return cfg, err
	}
	if len(cfg.Brokers) == 0 {
		return cfg, fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return cfg, fmt.Errorf("topic is required")
	}
	if _, err := codec(cfg.Compression); err != nil {
		return cfg, err
	}
	return withDefaults(cfg), nil
}

func codec(name string) (compress.Compression, error) {
	switch name {
	case "none", "":
		return 0, nil
	case "gzip":
		return compress.Gzip, nil
	case "snappy":
		return compress.Snappy, nil
	case "lz4":
		return compress.Lz4, nil
	case "zstd":
		return compress.Zstd, nil
	default:
		return 0, fmt.Errorf("invalid compression type: %s", name)
	}
}

// New creates a synchronous Kafka writer. No connection is made until the
// first batch is written.
func New(cfg Config) (*Sink, error) {
	return newWithTransport(cfg, nil)
}

// newWithTransport builds the writer over transport, or the kafka-go
// default transport when nil.
func newWithTransport(cfg Config, transport kafka.RoundTripper) (*Sink, error) {
	cfg = withDefaults(cfg)
	c, err := codec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // same flow, same partition
		BatchSize:    cfg.BatchSize,
		BatchTimeout: writerLinger,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Compression:  c,
		Transport:    transport,
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"brokers":     cfg.Brokers,
		"topic":       cfg.Topic,
		"compression": cfg.Compression,
		"batch_size":  cfg.BatchSize,
	}).Debug("kafka sink created")

	return newWithWriter(cfg, w), nil
}

// withDefaults fills the batching and timeout settings left at zero.
func withDefaults(cfg Config) Config {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	return cfg
}

func newWithWriter(cfg Config, w messageWriter) *Sink {
	cfg = withDefaults(cfg)
	return &Sink{
		config:  cfg,
		writer:  w,
		pending: make([]kafka.Message, 0, cfg.BatchSize),
	}
}

// Send queues the packet and writes the batch once it is full or its
// oldest message has waited BatchTimeout.
func (s *Sink) Send(pkt *core.DecodedPacket) error {
	if s.writer == nil {
		return core.ErrSinkClosed
	}
	if pkt == nil {
		return fmt.Errorf("nil packet")
	}

	value, err := json.Marshal(sink.NewRecord(pkt, s.config.Payload))
	if err != nil {
		s.errorCount.Add(1)
		return fmt.Errorf("serialize packet failed: %w", err)
	}

	if len(s.pending) == 0 {
		s.oldest = time.Now()
	}
	s.pending = append(s.pending, kafka.Message{
		Key:   []byte(pkt.Flow()),
		Value: value,
		Time:  pkt.Time(),
		Headers: []kafka.Header{
			{Key: "transport", Value: []byte(pkt.Transport.String())},
		},
	})

	if len(s.pending) >= s.config.BatchSize || time.Since(s.oldest) >= s.config.BatchTimeout {
		return s.flush()
	}
	return nil
}

// flush writes every pending message. Failed messages are dropped.
func (s *Sink) flush() error {
	n := len(s.pending)
	if n == 0 {
		return nil
	}
	defer func() { s.pending = s.pending[:0] }()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()
	if err := s.writer.WriteMessages(ctx, s.pending...); err != nil {
		s.errorCount.Add(uint64(n))
		return fmt.Errorf("kafka write of %d messages failed: %w", n, err)
	}

	s.sentCount.Add(uint64(n))
	return nil
}

// Pending returns the number of messages not yet written.
func (s *Sink) Pending() int {
	return len(s.pending)
}

// Close writes pending messages and closes the writer. Send fails with
// core.ErrSinkClosed afterwards.
func (s *Sink) Close() error {
	if s.writer == nil {
		return nil
	}
	flushErr := s.flush()
	closeErr := s.writer.Close()
	s.writer = nil

	log.GetLogger().WithFields(map[string]interface{}{
		"total_sent":   s.sentCount.Load(),
		"total_errors": s.errorCount.Load(),
	}).Info("kafka sink closed")

	if closeErr != nil {
		closeErr = fmt.Errorf("error closing kafka writer: %w", closeErr)
	}
	return errors.Join(flushErr, closeErr)
}
