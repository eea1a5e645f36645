// Package watchlist identifies which sequence number an encrypted datagram
// carries without the number ever being sent in cleartext.
//
// Every packet body is encrypted under a keystream whose IV is derived from
// its sequence number, so the first TokenLength bytes of the ciphertext are
// a pseudorandom function of (sequence number, session key): the watch
// token. A receiver precomputes the tokens of the next Capacity sequence
// numbers it expects from a peer and looks the leading ciphertext bytes up
// in that window.
//
// # Token Derivation
//
// Encode reproduces exactly what the sender's packet encryption produces:
//
//  1. the sequence number as 4 big-endian bytes
//  2. an IV of one cipher block: the session nonce with its last 4 bytes
//     replaced by the big-endian sequence number
//  3. the IV enciphered in place with the IV cipher
//  4. a CFB stream keyed by the stream cipher from that IV
//  5. the 4 sequence bytes encrypted through the stream
//
// # Sliding Window
//
// Window keeps Capacity tokens in a circular buffer covering the contiguous
// run [base, base+Capacity). Advance slides it so the highest authenticated
// sequence number sits near the midpoint, leaving room for stragglers behind
// and bursts ahead. All ordering goes through seqnum.IsAhead so the window
// is correct across the 2^32 wrap.
//
//	w, _ := watchlist.NewWindow(cfg)
//	w.EnsureInitialized(firstSeq, key)
//	w.Advance(key)
//	seq, ok := w.PossibleMatch(datagram, limits.HMACLength, minSeq)
//
// # Thread Safety
//
// A Window is guarded by a single mutex. A slide is never visible half
// applied to PossibleMatch.
package watchlist
