package erf

const (
	nanosPerSecond = 1_000_000_000
	fractionHalf   = 1 << 31
)

// Nanos converts an ERF 32.32 fixed-point timestamp to nanoseconds since the
// Unix epoch. The fraction is rounded half up to the nearest nanosecond using
// exact integer arithmetic: fraction*1e9 fits in 63 bits.
func Nanos(seconds, fraction uint32) int64 {
	frac := (uint64(fraction)*nanosPerSecond + fractionHalf) >> 32
	return int64(seconds)*nanosPerSecond + int64(frac)
}
