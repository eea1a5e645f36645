// Package seqnum implements wrap-safe arithmetic on 32-bit packet sequence
// numbers.
//
// Sequence numbers live in a modular space of size 2^32. Addition and
// subtraction wrap naturally through uint32 overflow, so the only thing
// that needs care is ordering: "a is later than b" is only meaningful
// within a tolerance window, in the style of RFC 1982 serial number
// arithmetic.
//
//	if seqnum.IsAhead(seq, highest, seqnum.DefaultToleranceBits) {
//	    highest = seq
//	}
//
// IsAhead is the only ordering defined on sequence numbers. Callers must
// never compare two Numbers with < or > directly.
package seqnum
