package transport

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/seqwatch/crypto"
	"github.com/opd-ai/seqwatch/interfaces"
	"github.com/opd-ai/seqwatch/seqnum"
	"github.com/opd-ai/seqwatch/watchlist"
	"github.com/sirupsen/logrus"
)

// sequenceSpace is the number of distinct sequence numbers one key can send.
const sequenceSpace = uint64(1) << seqnum.SpaceBits

// KeyContext is the per-key packet state of one peer: outgoing sequence
// allocation and the incoming watch list.
type KeyContext struct {
	key            *crypto.SessionKey
	window         *watchlist.Window
	rekeyThreshold uint32
	rekeyRequested atomic.Bool

	mu          sync.Mutex
	nextSeq     seqnum.Number
	allocated   uint64
	rekeyWarned bool
}

// NewKeyContext creates the packet state for key. Outgoing numbers start at
// the key's OurFirstSeq; the watch list is built lazily from TheirFirstSeq
// when the first packet arrives.
func NewKeyContext(key *crypto.SessionKey, config interfaces.PacketFormatConfig) (*KeyContext, error) {
	if key == nil {
		return nil, ErrNoSessionKey
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("packet format config: %w", err)
	}

	window, err := watchlist.NewWindow(config.WatchList)
	if err != nil {
		return nil, err
	}

	return &KeyContext{
		key:            key,
		window:         window,
		rekeyThreshold: config.RekeyThreshold,
		nextSeq:        seqnum.Number(key.OurFirstSeq),
	}, nil
}

// Key returns the session key.
func (kc *KeyContext) Key() *crypto.SessionKey {
	return kc.key
}

// Window returns the incoming watch list.
func (kc *KeyContext) Window() *watchlist.Window {
	return kc.window
}

// FirstSeqNumUsed returns the first outgoing sequence number of this key.
func (kc *KeyContext) FirstSeqNumUsed() seqnum.Number {
	return seqnum.Number(kc.key.OurFirstSeq)
}

// Remaining returns how many outgoing sequence numbers are still unused.
func (kc *KeyContext) Remaining() uint64 {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	return sequenceSpace - kc.allocated
}

// RekeyNeeded reports whether the remaining outgoing numbers have dropped to
// the rekey threshold.
func (kc *KeyContext) RekeyNeeded() bool {
	return kc.Remaining() <= uint64(kc.rekeyThreshold)
}

// AllocateSeq returns the next outgoing sequence number. Once every number
// has been used it fails with ErrRekeyRequired rather than wrap onto
// FirstSeqNumUsed.
func (kc *KeyContext) AllocateSeq() (seqnum.Number, error) {
	kc.mu.Lock()
	defer kc.mu.Unlock()

	if kc.allocated >= sequenceSpace {
		return 0, ErrRekeyRequired
	}

	seq := kc.nextSeq
	kc.nextSeq++
	kc.allocated++

	if !kc.rekeyWarned && sequenceSpace-kc.allocated <= uint64(kc.rekeyThreshold) {
		kc.rekeyWarned = true
		logrus.WithFields(logrus.Fields{
			"function":   "KeyContext.AllocateSeq",
			"tracker_id": fmt.Sprintf("%016x", kc.key.TrackerID),
			"remaining":  sequenceSpace - kc.allocated,
			"threshold":  kc.rekeyThreshold,
		}).Warn("Outgoing sequence numbers nearly exhausted, rekey needed")
	}

	return seq, nil
}

// watch makes sure the incoming watch list exists and is positioned around
// the highest number received so far.
func (kc *KeyContext) watch() *watchlist.Window {
	in := kc.key.Incoming()
	kc.window.EnsureInitialized(seqnum.Number(kc.key.TheirFirstSeq), in)
	kc.window.Advance(in)
	return kc.window
}

// release drops the watch list and wipes the key. The owner must hold off
// concurrent Seal and Open calls.
func (kc *KeyContext) release() {
	kc.window.Invalidate()
	kc.key.Wipe()
}
