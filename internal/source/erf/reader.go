// Package erf reads ERF (Extended Record Format) capture streams record by
// record and hands Ethernet frames to the protocol decoder.
package erf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"firestige.xyz/erfreader/internal/core"
	"firestige.xyz/erfreader/internal/core/decoder"
)

const (
	extensionBlockLen = 8
	ethernetPadLen    = 2
	maxRecordLen      = 1<<16 - 1
)

// Result is the outcome of one Next call.
type Result struct {
	Outcome core.Outcome
	Header  core.RecordHeader

	// Packet is set for OutcomePacket. It borrows the reader's buffer and is
	// only valid until the next call to Next.
	Packet *core.DecodedPacket

	// Reason and Cause are set for OutcomeSkipped.
	Reason core.SkipReason
	Cause  error

	// Records is the number of complete records read so far. For
	// OutcomeTruncated it counts the records before the partial one.
	Records int
}

// Reader iterates over the records of an ERF stream.
//
// The record buffer and the decoded packet are reused between calls. Once
// the stream ends, is truncated or hits a fatal error, the reader is dead
// and Next returns core.ErrReaderClosed.
type Reader struct {
	// the source stream to read from
	src io.Reader
	// closed by Close when the reader owns the stream
	closer io.Closer

	dec decoder.Decoder

	// only one record at a time is being read,
	// so a single allocation serves the whole stream
	header [core.RecordHeaderLen]byte
	buf    []byte
	pkt    core.DecodedPacket

	records int
	dead    bool
}

// NewReader returns a Reader over src that decodes frames with dec.
func NewReader(src io.Reader, dec decoder.Decoder) *Reader {
	if dec == nil {
		dec = decoder.NewStandardDecoder(decoder.Config{})
	}
	r := &Reader{
		src: src,
		dec: dec,
		buf: make([]byte, maxRecordLen),
	}
	if c, ok := src.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// Records returns the number of complete records read so far.
func (r *Reader) Records() int {
	return r.records
}

// Next reads and decodes the next record.
//
// The returned error is non-nil only for conditions that must abort the
// run: unsupported features, broken record framing and I/O failures.
// End of stream and truncation are reported through Result.Outcome.
func (r *Reader) Next() (Result, error) {
	if r.dead {
		return Result{}, core.ErrReaderClosed
	}

	// read header
	_, err := io.ReadFull(r.src, r.header[:])
	switch {
	// no more data to read
	case err == io.EOF:
		r.dead = true
		return Result{Outcome: core.OutcomeEndOfStream, Records: r.records}, nil
	case err == io.ErrUnexpectedEOF:
		r.dead = true
		return Result{Outcome: core.OutcomeTruncated, Records: r.records}, nil
	case err != nil:
		r.dead = true
		return Result{}, fmt.Errorf("read header of record %d: %w", r.records, err)
	}

	h := parseHeader(r.header[:])
	res := Result{Header: h}

	length := h.PayloadLength()
	if length < 0 {
		// Without a sane length the next header cannot be located.
		r.dead = true
		return res, fmt.Errorf("record %d: total length %d: %w", r.records, h.TotalLength, core.ErrMalformedRecord)
	}

	// read data
	data := r.buf[:length]
	if _, err := io.ReadFull(r.src, data); err != nil {
		r.dead = true
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			res.Outcome = core.OutcomeTruncated
			res.Records = r.records
			return res, nil
		}
		return res, fmt.Errorf("read data of record %d: %w", r.records, err)
	}

	index := r.records
	r.records++
	res.Records = r.records

	err = r.decode(index, h, data)
	switch {
	case err == nil:
		res.Outcome = core.OutcomePacket
		res.Packet = &r.pkt
		return res, nil
	case !core.IsFatal(err):
		res.Outcome = core.OutcomeSkipped
		res.Reason = core.SkipMalformed
		var skip *core.SkipError
		if errors.As(err, &skip) {
			res.Reason = skip.Reason
			res.Cause = skip.Err
		}
		return res, nil
	default:
		r.dead = true
		return res, fmt.Errorf("record %d: %w", index, err)
	}
}

// decode fills r.pkt from the record payload.
func (r *Reader) decode(index int, h core.RecordHeader, data []byte) error {
	r.pkt.Reset()
	r.pkt.Record = index
	r.pkt.Timestamp = Nanos(h.Seconds, h.Fraction)
	r.pkt.WireLength = h.WireLength
	r.pkt.LossCounter = h.LossCounter

	if h.Type() != core.RecordTypeEthernet {
		return core.Skip(core.SkipRecordType)
	}

	off, err := frameOffset(h, data)
	if err != nil {
		return err
	}

	return r.dec.Decode(data[off:], off, &r.pkt)
}

// frameOffset returns the offset of the Ethernet frame in an Ethernet
// record payload: past any extension blocks and the 2-byte pad.
func frameOffset(h core.RecordHeader, data []byte) (int, error) {
	off := 0
	if h.HasExtensions() {
		// Each block's top bit announces another block; the last one
		// has it clear and is skipped as well.
		for {
			if off+extensionBlockLen > len(data) {
				return 0, core.Malformed(core.ErrPacketTooShort)
			}
			more := data[off]&0x80 != 0
			off += extensionBlockLen
			if !more {
				break
			}
		}
	}

	off += ethernetPadLen
	if off > len(data) {
		return 0, core.Malformed(core.ErrPacketTooShort)
	}
	return off, nil
}

// parseHeader extracts the record header fields. The timestamp is a
// little-endian 64-bit 32.32 fixed-point value (fraction in the low word);
// every other multi-byte field is in network byte order.
func parseHeader(b []byte) core.RecordHeader {
	return core.RecordHeader{
		Fraction:    binary.LittleEndian.Uint32(b[0:4]),
		Seconds:     binary.LittleEndian.Uint32(b[4:8]),
		TypeByte:    b[8],
		Flags:       b[9],
		TotalLength: binary.BigEndian.Uint16(b[10:12]),
		LossCounter: binary.BigEndian.Uint16(b[12:14]),
		WireLength:  binary.BigEndian.Uint16(b[14:16]),
	}
}

// Close marks the reader dead and closes the underlying stream if the
// reader owns it.
func (r *Reader) Close() error {
	r.dead = true
	if r.closer != nil {
		c := r.closer
		r.closer = nil
		return c.Close()
	}
	return nil
}
