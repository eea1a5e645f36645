package interfaces

import (
	"crypto/cipher"

	"github.com/opd-ai/seqwatch/seqnum"
)

// IKeyMaterial is the session key material a watch token is derived from.
// Implementations must be safe for concurrent readers.
type IKeyMaterial interface {
	// IVCipher blinds the per-packet IV with a single-block encipherment.
	IVCipher() cipher.Block

	// IVNonce is copied into the low bytes of every IV.
	IVNonce() []byte

	// StreamCipher keys the CFB keystream tokens and bodies are cut from.
	StreamCipher() cipher.Block
}

// IWatchList is a per-peer window of expected sequence number tokens.
type IWatchList interface {
	// EnsureInitialized builds the window starting at first if it is not
	// already built. It reports whether a build happened.
	EnsureInitialized(first seqnum.Number, key IKeyMaterial) bool

	// RecordReceived notes that seq was authenticated.
	RecordReceived(seq seqnum.Number)

	// Advance slides the window so the highest received number sits near
	// its midpoint, returning the number of positions moved.
	Advance(key IKeyMaterial) uint32

	// PossibleMatch looks for the token at buf[offset:] and returns the
	// first matching sequence number ahead of minSeq.
	PossibleMatch(buf []byte, offset int, minSeq seqnum.Number) (seqnum.Number, bool)

	// Invalidate discards the window after a key change.
	Invalidate()

	// IsInitialized reports whether the window is active.
	IsInitialized() bool
}
