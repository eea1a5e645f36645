package limits

import (
	"errors"
	"fmt"

	"github.com/opd-ai/seqwatch/seqnum"
)

const (
	// TokenLength is the size of an encrypted sequence number token.
	TokenLength = 4

	// HMACLength is the truncated HMAC-SHA256 prefix carried by every packet.
	// The token is found immediately after it.
	HMACLength = 10

	// MinPacketSize is the smallest datagram that can carry a token.
	MinPacketSize = HMACLength + TokenLength

	// MaxPacketSize is the largest datagram the packet format will produce
	// or accept. It leaves room for IPv6 and UDP headers under a 1492 MTU.
	MaxPacketSize = 1440

	// MaxPayloadSize is the largest caller payload that fits in one packet.
	MaxPayloadSize = MaxPacketSize - MinPacketSize

	// DefaultWatchListSize is the number of sequence numbers watched per peer.
	DefaultWatchListSize = 1024

	// MinWatchListSize keeps the window midpoint distinct from its base.
	MinWatchListSize = 2

	// MaxWatchListSize bounds per-peer memory at 256KiB of tokens.
	MaxWatchListSize = 65536

	// DefaultRekeyThreshold is how many outgoing sequence numbers may remain
	// before the sender asks for a new session key.
	DefaultRekeyThreshold = 100

	// MaxProcessingBuffer is the absolute maximum for any read buffer.
	MaxProcessingBuffer = 1024 * 1024
)

var (
	// ErrPacketTooShort indicates a datagram shorter than MinPacketSize
	ErrPacketTooShort = errors.New("packet too short")

	// ErrPacketTooLarge indicates a datagram or payload above its limit
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrWindowCapacity indicates an unsupported watch list size
	ErrWindowCapacity = errors.New("invalid watch list size")

	// ErrToleranceBits indicates an unsupported comparator tolerance
	ErrToleranceBits = errors.New("invalid tolerance bits")
)

// ValidatePacket validates a received or outgoing datagram size.
func ValidatePacket(packet []byte) error {
	if len(packet) < MinPacketSize {
		return fmt.Errorf("%w: size %d below minimum %d", ErrPacketTooShort, len(packet), MinPacketSize)
	}
	if len(packet) > MaxPacketSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPacketTooLarge, len(packet), MaxPacketSize)
	}
	return nil
}

// ValidatePayload validates a caller payload against MaxPayloadSize.
// Empty payloads are allowed; they produce keepalive-sized packets.
func ValidatePayload(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds limit %d", ErrPacketTooLarge, len(payload), MaxPayloadSize)
	}
	return nil
}

// ValidateWindowCapacity checks a watch list size against
// [MinWatchListSize, MaxWatchListSize].
func ValidateWindowCapacity(capacity int) error {
	if capacity < MinWatchListSize || capacity > MaxWatchListSize {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrWindowCapacity, capacity, MinWatchListSize, MaxWatchListSize)
	}
	return nil
}

// ValidateToleranceBits checks that a comparator tolerance is within the
// sequence space and wide enough that every number in a window of the
// given capacity compares as ahead of the number just below the window.
func ValidateToleranceBits(bits uint, capacity int) error {
	if bits < 2 || bits > seqnum.SpaceBits {
		return fmt.Errorf("%w: %d not in [2, %d]", ErrToleranceBits, bits, seqnum.SpaceBits)
	}
	if uint64(capacity) > seqnum.HalfWindow(bits) {
		return fmt.Errorf("%w: %d bits cannot cover a window of %d", ErrToleranceBits, bits, capacity)
	}
	return nil
}
