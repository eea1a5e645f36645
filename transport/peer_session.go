package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/seqwatch/crypto"
	"github.com/opd-ai/seqwatch/interfaces"
	"github.com/opd-ai/seqwatch/seqnum"
	"github.com/sirupsen/logrus"
)

// KeySlot identifies which of a session's keys decoded a packet.
type KeySlot uint8

const (
	// SlotCurrent is the key used for sending
	SlotCurrent KeySlot = iota
	// SlotPrevious is the key replaced by the last promotion
	SlotPrevious
	// SlotUnverified is a negotiated key the peer has not used yet
	SlotUnverified
)

func (s KeySlot) String() string {
	switch s {
	case SlotCurrent:
		return "current"
	case SlotPrevious:
		return "previous"
	case SlotUnverified:
		return "unverified"
	default:
		return fmt.Sprintf("KeySlot(%d)", uint8(s))
	}
}

// Received is a packet decoded by a PeerSession.
type Received struct {
	Seq     seqnum.Number
	Payload []byte
	Slot    KeySlot
}

// PeerSession holds the key contexts of one peer across rekeys. Packets are
// sent under the current key and accepted under the current, previous, or
// unverified key; the first packet the peer sends under the unverified key
// promotes it.
type PeerSession struct {
	config interfaces.PacketFormatConfig

	mu         sync.RWMutex
	rotation   *crypto.KeyRotationPolicy
	onRekey    func()
	current    *KeyContext
	previous   *KeyContext
	unverified *KeyContext
}

// NewPeerSession creates a session with no keys installed.
func NewPeerSession(config interfaces.PacketFormatConfig) (*PeerSession, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("packet format config: %w", err)
	}
	return &PeerSession{config: config}, nil
}

// Config returns the configuration key contexts are created with.
func (s *PeerSession) Config() interfaces.PacketFormatConfig {
	return s.config
}

// Rekey installs a freshly negotiated key. The first key of a session
// becomes current immediately; later keys wait as unverified until Promote
// or until the peer is seen using them.
func (s *PeerSession) Rekey(key *crypto.SessionKey) error {
	kc, err := NewKeyContext(key, s.config)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields := logrus.Fields{
		"function":   "PeerSession.Rekey",
		"tracker_id": fmt.Sprintf("%016x", key.TrackerID),
		"suite":      key.Suite.Name,
	}

	if s.current == nil {
		s.current = kc
		logrus.WithFields(fields).Info("Installed initial session key")
		return nil
	}

	if s.unverified != nil {
		s.unverified.release()
	}
	s.unverified = kc
	logrus.WithFields(fields).Info("Installed unverified session key")
	return nil
}

// Promote makes the unverified key current. The old current key is kept as
// previous when the config asks for it, so in-flight packets still decode.
func (s *PeerSession) Promote() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promoteLocked()
}

func (s *PeerSession) promoteLocked() error {
	if s.unverified == nil {
		return fmt.Errorf("%w: nothing to promote", ErrNoSessionKey)
	}

	if s.previous != nil {
		s.previous.release()
		s.previous = nil
	}
	if s.config.KeepPreviousKey {
		s.previous = s.current
	} else if s.current != nil {
		s.current.release()
	}
	s.current = s.unverified
	s.unverified = nil

	logrus.WithFields(logrus.Fields{
		"function":   "PeerSession.Promote",
		"tracker_id": fmt.Sprintf("%016x", s.current.key.TrackerID),
	}).Info("Promoted session key")
	return nil
}

// Current returns the sending key context, or nil before the first Rekey.
func (s *PeerSession) Current() *KeyContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// HasUnverified reports whether a negotiated key is waiting for promotion.
func (s *PeerSession) HasUnverified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unverified != nil
}

// SetRotationPolicy adds an age limit to the current key. Pass nil to rely
// on sequence number exhaustion alone.
func (s *PeerSession) SetRotationPolicy(policy *crypto.KeyRotationPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation = policy
}

// SetRekeyHandler registers fn to be called once per sending key, from
// Seal, when that key first needs replacing. fn runs without the session
// lock held and may call Rekey and Promote.
func (s *PeerSession) SetRekeyHandler(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRekey = fn
}

// RekeyNeeded reports whether the current key is running out of sequence
// numbers or has outlived the rotation policy.
func (s *PeerSession) RekeyNeeded() bool {
	s.mu.RLock()
	kc, policy := s.current, s.rotation
	s.mu.RUnlock()
	return needsRekey(kc, policy)
}

func needsRekey(kc *KeyContext, policy *crypto.KeyRotationPolicy) bool {
	if kc == nil {
		return false
	}
	if kc.RekeyNeeded() {
		return true
	}
	return policy != nil && policy.ShouldRotate(kc.Key())
}

// Seal encodes payload under the current key. When the key needs replacing
// the rekey handler is notified, even if this packet could not be sealed.
func (s *PeerSession) Seal(payload []byte) ([]byte, seqnum.Number, error) {
	s.mu.RLock()
	kc, policy, onRekey := s.current, s.rotation, s.onRekey
	if kc == nil {
		s.mu.RUnlock()
		return nil, 0, ErrNoSessionKey
	}
	packet, seq, err := kc.Seal(payload)
	s.mu.RUnlock()

	if onRekey != nil && needsRekey(kc, policy) && kc.rekeyRequested.CompareAndSwap(false, true) {
		logrus.WithFields(logrus.Fields{
			"function":   "PeerSession.Seal",
			"tracker_id": fmt.Sprintf("%016x", kc.key.TrackerID),
		}).Info("Requesting rekey")
		onRekey()
	}
	return packet, seq, err
}

// Open decodes a datagram from the peer, trying the current, previous, and
// unverified keys in that order. If only ErrBadHMAC and ErrNoMatch
// failures occur, ErrNoMatch wins because it means some key authenticated
// the packet.
func (s *PeerSession) Open(datagram []byte) (Received, error) {
	pkt, kc, err := s.open(datagram)
	if err == nil && pkt.Slot == SlotUnverified {
		s.promoteIfUnverified(kc)
	}
	return pkt, err
}

// open runs under the read lock so no key is released and wiped while it
// is in use.
func (s *PeerSession) open(datagram []byte) (Received, *KeyContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := []struct {
		kc   *KeyContext
		slot KeySlot
	}{
		{s.current, SlotCurrent},
		{s.previous, SlotPrevious},
		{s.unverified, SlotUnverified},
	}

	result := ErrNoSessionKey
	for _, c := range candidates {
		if c.kc == nil {
			continue
		}

		seq, payload, err := c.kc.Open(datagram)
		if err == nil {
			return Received{Seq: seq, Payload: payload, Slot: c.slot}, c.kc, nil
		}

		switch {
		case errors.Is(err, ErrNoMatch):
			result = ErrNoMatch
		case errors.Is(err, ErrBadHMAC):
			if !errors.Is(result, ErrNoMatch) {
				result = ErrBadHMAC
			}
		default:
			return Received{}, nil, err
		}
	}
	return Received{}, nil, result
}

// promoteIfUnverified promotes kc unless another goroutine already did or
// a newer key replaced it.
func (s *PeerSession) promoteIfUnverified(kc *KeyContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unverified == kc {
		_ = s.promoteLocked()
	}
}

// Close releases every key and its watch list.
func (s *PeerSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kc := range []*KeyContext{s.current, s.previous, s.unverified} {
		if kc != nil {
			kc.release()
		}
	}
	s.current, s.previous, s.unverified = nil, nil, nil
}
