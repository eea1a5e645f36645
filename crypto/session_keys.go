package crypto

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"time"
)

// ErrBlockSizeMismatch indicates an IV cipher whose block size differs from
// the stream cipher's, which would make the blinded IV unusable as a CFB IV.
var ErrBlockSizeMismatch = errors.New("IV cipher and stream cipher block sizes differ")

// DirectionalKey is the key material for one direction of a session: the
// cipher keying the packet keystream, the IV blinding cipher and nonce, and
// the HMAC key authenticating packets in that direction.
//
// A DirectionalKey satisfies interfaces.IKeyMaterial.
type DirectionalKey struct {
	stream   cipher.Block
	ivCipher cipher.Block
	ivNonce  []byte
	hmacKey  []byte
}

// StreamCipher returns the block cipher run in CFB mode over packet bodies.
func (k *DirectionalKey) StreamCipher() cipher.Block { return k.stream }

// IVCipher returns the single-block cipher that blinds per-packet IVs.
func (k *DirectionalKey) IVCipher() cipher.Block { return k.ivCipher }

// IVNonce returns the session nonce copied into every IV.
func (k *DirectionalKey) IVNonce() []byte { return k.ivNonce }

// HMACKey returns the key authenticating packets in this direction.
func (k *DirectionalKey) HMACKey() []byte { return k.hmacKey }

// SessionKeyMaterial is the raw key material a SessionKey is built from.
// Incoming keys decrypt what the peer sends; outgoing keys encrypt what we send.
// The IV key and nonce are shared by both directions.
type SessionKeyMaterial struct {
	IncomingKey     []byte
	OutgoingKey     []byte
	IVKey           []byte
	IVNonce         []byte
	IncomingHMACKey []byte
	OutgoingHMACKey []byte

	// First sequence numbers each side will send under this key.
	OurFirstSeq   uint32
	TheirFirstSeq uint32
	TrackerID     uint64
}

// SessionKey is the key material of one cryptographic session with a peer.
// It is created once per handshake or rekey and never mutated afterwards,
// so it may be shared by concurrent readers.
type SessionKey struct {
	Suite         CipherSuite
	TrackerID     uint64
	OurFirstSeq   uint32
	TheirFirstSeq uint32
	CreatedAt     time.Time

	incoming *DirectionalKey
	outgoing *DirectionalKey
}

// NewSessionKey builds a SessionKey for suite from raw material. The byte
// slices in m are copied; the caller may wipe them afterwards.
func NewSessionKey(suite CipherSuite, m SessionKeyMaterial) (*SessionKey, error) {
	return NewSessionKeyWithTimeProvider(suite, m, nil)
}

// NewSessionKeyWithTimeProvider is NewSessionKey with an injectable clock
// for CreatedAt. Pass nil to use the package default.
func NewSessionKeyWithTimeProvider(suite CipherSuite, m SessionKeyMaterial, tp TimeProvider) (*SessionKey, error) {
	if tp == nil {
		tp = GetDefaultTimeProvider()
	}

	ivCipher, err := suite.NewBlock(m.IVKey)
	if err != nil {
		return nil, fmt.Errorf("IV cipher: %w", err)
	}
	if len(m.IVNonce) != ivCipher.BlockSize() {
		return nil, fmt.Errorf("%w: IV nonce must be %d bytes, got %d", ErrInvalidKeyLength, ivCipher.BlockSize(), len(m.IVNonce))
	}
	if len(m.IncomingHMACKey) == 0 || len(m.OutgoingHMACKey) == 0 {
		return nil, fmt.Errorf("%w: empty HMAC key", ErrInvalidKeyLength)
	}

	nonce := append([]byte(nil), m.IVNonce...)

	incoming, err := newDirectionalKey(suite, m.IncomingKey, ivCipher, nonce, m.IncomingHMACKey)
	if err != nil {
		return nil, fmt.Errorf("incoming key: %w", err)
	}
	outgoing, err := newDirectionalKey(suite, m.OutgoingKey, ivCipher, nonce, m.OutgoingHMACKey)
	if err != nil {
		return nil, fmt.Errorf("outgoing key: %w", err)
	}

	return &SessionKey{
		Suite:         suite,
		TrackerID:     m.TrackerID,
		OurFirstSeq:   m.OurFirstSeq,
		TheirFirstSeq: m.TheirFirstSeq,
		CreatedAt:     tp.Now(),
		incoming:      incoming,
		outgoing:      outgoing,
	}, nil
}

func newDirectionalKey(suite CipherSuite, key []byte, ivCipher cipher.Block, nonce, hmacKey []byte) (*DirectionalKey, error) {
	stream, err := suite.NewBlock(key)
	if err != nil {
		return nil, err
	}
	if stream.BlockSize() != ivCipher.BlockSize() {
		return nil, fmt.Errorf("%w: %d vs %d", ErrBlockSizeMismatch, ivCipher.BlockSize(), stream.BlockSize())
	}
	return &DirectionalKey{
		stream:   stream,
		ivCipher: ivCipher,
		ivNonce:  nonce,
		hmacKey:  append([]byte(nil), hmacKey...),
	}, nil
}

// Incoming returns the key material for packets the peer sends us.
func (sk *SessionKey) Incoming() *DirectionalKey { return sk.incoming }

// Outgoing returns the key material for packets we send the peer.
func (sk *SessionKey) Outgoing() *DirectionalKey { return sk.outgoing }

// Age returns how long ago the key was created according to tp.
func (sk *SessionKey) Age(tp TimeProvider) time.Duration {
	if tp == nil {
		tp = GetDefaultTimeProvider()
	}
	return tp.Since(sk.CreatedAt)
}

// Wipe erases the HMAC keys and nonce. The block ciphers keep their
// expanded schedules; drop every reference to sk after calling Wipe.
func (sk *SessionKey) Wipe() {
	if sk == nil {
		return
	}
	for _, k := range []*DirectionalKey{sk.incoming, sk.outgoing} {
		if k == nil {
			continue
		}
		ZeroBytes(k.hmacKey)
		ZeroBytes(k.ivNonce)
	}
}

// String identifies the key in logs without revealing material.
func (sk *SessionKey) String() string {
	return fmt.Sprintf("SessionKey{tracker=%016x suite=%s}", sk.TrackerID, sk.Suite.Name)
}
