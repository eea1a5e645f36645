package seqnum

// Number is a packet sequence number in the modular space [0, 2^32).
type Number uint32

const (
	// SpaceBits is the width of the sequence number space.
	SpaceBits = 32

	// DefaultToleranceBits is the tolerance used by the watch list and the
	// packet format. It accepts a number as "ahead" when it is at most
	// 2^30 positions in front of the reference.
	DefaultToleranceBits = 31
)

// IsAhead reports whether a should be treated as strictly later than b,
// given a tolerance window of 2^(toleranceBits-1) positions.
//
// Let d = (a - b) mod 2^32. IsAhead is true iff 0 < d <= 2^(toleranceBits-1).
// toleranceBits outside [1, SpaceBits] is clamped into that range.
func IsAhead(a, b Number, toleranceBits uint) bool {
	d := uint64(Distance(b, a))
	return d != 0 && d <= HalfWindow(toleranceBits)
}

// HalfWindow returns 2^(toleranceBits-1), the largest forward distance
// IsAhead accepts for the given tolerance.
func HalfWindow(toleranceBits uint) uint64 {
	if toleranceBits < 1 {
		toleranceBits = 1
	}
	if toleranceBits > SpaceBits {
		toleranceBits = SpaceBits
	}
	return uint64(1) << (toleranceBits - 1)
}

// Distance returns the forward distance from from to to, (to - from) mod 2^32.
func Distance(from, to Number) uint32 {
	return uint32(to - from)
}

// Add returns n + k mod 2^32.
func Add(n Number, k uint32) Number {
	return n + Number(k)
}

// InWindow reports whether n lies in the run of size consecutive numbers
// starting at first, wrapping around the end of the space if needed.
func InWindow(n, first Number, size uint32) bool {
	return Distance(first, n) < size
}
