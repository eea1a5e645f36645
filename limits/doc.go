// Package limits provides centralized size constants and validation
// functions for the encrypted packet format and its sequence number watch
// lists. Every component that sizes a buffer or a window takes its bounds
// from here so that sender and receiver agree.
//
// # Packet Layout
//
// A datagram on the wire is laid out as
//
//	HMAC[HMACLength] || token[TokenLength] || encrypted payload
//
// where the token is the first TokenLength bytes of the encrypted body and
// doubles as the encrypted sequence number. MinPacketSize and MaxPacketSize
// bound the whole datagram; MaxPayloadSize is what is left for the caller.
//
// # Watch Lists
//
// DefaultWatchListSize (1024) is the number of sequence numbers watched per
// peer. It trades tolerance for reordering and jitter against the cost of
// maintaining and scanning the window. The window must fit inside the
// sequence comparator's tolerance, so ValidateToleranceBits rejects
// tolerances narrower than the window.
//
// # Error Types
//
//   - ErrPacketTooShort: datagram cannot hold the HMAC and token
//   - ErrPacketTooLarge: datagram or payload exceeds the limit
//   - ErrWindowCapacity: watch list size outside [MinWatchListSize, MaxWatchListSize]
//   - ErrToleranceBits: tolerance too narrow for the window, or out of range
package limits
