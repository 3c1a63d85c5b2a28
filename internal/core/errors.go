// Package core defines sentinel errors.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap them with %w and test with errors.Is.
var (
	// Record framing errors
	ErrMalformedRecord = errors.New("erf: malformed record")
	ErrReaderClosed    = errors.New("erf: reader closed")

	// Packet decoding errors
	ErrPacketTooShort     = errors.New("erf: packet too short")
	ErrNegativeLength     = errors.New("erf: negative payload length")
	ErrSkipped            = errors.New("erf: record skipped")
	ErrUnsupportedFeature = errors.New("erf: unsupported feature")

	// Sink errors
	ErrStop        = errors.New("erf: processing stopped by sink")
	ErrUnknownSink = errors.New("erf: unknown sink type")
	ErrSinkClosed  = errors.New("erf: sink closed")

	// Configuration errors
	ErrConfigInvalid = errors.New("erf: invalid configuration")
)

// UnsupportedFeatureError aborts a whole run. It is raised for input the
// decoder refuses to guess about, e.g. IPv4 fragments or IPv6 extension headers.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("erf: unsupported feature: %s", e.Feature)
}

func (e *UnsupportedFeatureError) Unwrap() error { return ErrUnsupportedFeature }

// SkipError drops a single record. Err, when set, carries the structural
// problem that caused the drop.
type SkipError struct {
	Reason SkipReason
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("erf: record skipped (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("erf: record skipped (%s)", e.Reason)
}

// Is reports ErrSkipped as well as the wrapped cause.
func (e *SkipError) Is(target error) bool { return target == ErrSkipped }

func (e *SkipError) Unwrap() error { return e.Err }

// Skip returns a SkipError for reason.
func Skip(reason SkipReason) error {
	return &SkipError{Reason: reason}
}

// Malformed returns a SkipError for a record whose headers do not add up.
func Malformed(err error) error {
	return &SkipError{Reason: SkipMalformed, Err: err}
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrSkipped)
}
