package transport

import "errors"

var (
	// ErrNoMatch indicates an authentic datagram whose token is not in the watch list
	ErrNoMatch = errors.New("no watched sequence number matches packet")
	// ErrBadHMAC indicates a datagram that fails authentication under every key
	ErrBadHMAC = errors.New("packet authentication failed")
	// ErrNoSessionKey indicates an operation on a session with no key installed
	ErrNoSessionKey = errors.New("no session key")
	// ErrRekeyRequired indicates the outgoing sequence space of a key is exhausted
	ErrRekeyRequired = errors.New("sequence numbers exhausted, rekey required")
	// ErrClosed indicates use of a closed PacketConn
	ErrClosed = errors.New("packet connection closed")
)
