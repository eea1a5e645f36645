package watchlist

import (
	"sync"

	"github.com/opd-ai/seqwatch/interfaces"
	"github.com/opd-ai/seqwatch/limits"
	"github.com/opd-ai/seqwatch/seqnum"
	"github.com/sirupsen/logrus"
)

// Window is a fixed-capacity sliding window of watch tokens for one peer
// under one session key.
//
// While initialized, slot (start+i) mod capacity holds Encode(base+i) for
// every i in [0, capacity).
type Window struct {
	mu sync.Mutex

	capacity      int
	toleranceBits uint

	slots []Token // nil until initialized
	base  seqnum.Number
	start int

	highest    seqnum.Number
	hasHighest bool
}

var _ interfaces.IWatchList = (*Window)(nil)

// NewWindow creates an uninitialized window. The config is validated
// against the limits package.
func NewWindow(config interfaces.WatchListConfig) (*Window, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Window{
		capacity:      config.Capacity,
		toleranceBits: config.ToleranceBits,
	}, nil
}

// Capacity returns the number of sequence numbers watched.
func (w *Window) Capacity() int {
	return w.capacity
}

// IsInitialized reports whether the window holds tokens.
func (w *Window) IsInitialized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.slots != nil
}

// Base returns the lowest watched sequence number.
func (w *Window) Base() seqnum.Number {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.base
}

// HighestReceived returns the highest sequence number recorded so far.
func (w *Window) HighestReceived() seqnum.Number {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.highest
}

// Contains reports whether seq is currently watched.
func (w *Window) Contains(seq seqnum.Number) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.slots != nil && seqnum.InWindow(seq, w.base, uint32(w.capacity))
}

// EnsureInitialized fills the window with the tokens of
// [first, first+capacity) unless it is already built. If nothing has been
// recorded yet, the highest received number becomes first-1 so the window
// does not move before the first packet arrives.
func (w *Window) EnsureInitialized(first seqnum.Number, key interfaces.IKeyMaterial) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.slots != nil {
		return false
	}

	logrus.WithFields(logrus.Fields{
		"function": "Window.EnsureInitialized",
		"first":    first,
		"capacity": w.capacity,
	}).Debug("Creating watch list")

	slots := make([]Token, w.capacity)
	for i := range slots {
		slots[i] = Encode(seqnum.Add(first, uint32(i)), key)
	}

	w.slots = slots
	w.base = first
	w.start = 0
	if !w.hasHighest {
		w.highest = first - 1
		w.hasHighest = true
	}
	return true
}

// Invalidate returns the window to its just-constructed state. The owner
// calls it when the session key changes, since every token depends on it.
func (w *Window) Invalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.slots = nil
	w.base = 0
	w.start = 0
	w.highest = 0
	w.hasHighest = false
}

// RecordReceived raises the highest received number to seq if seq is ahead
// of it. It never moves the window; Advance does.
func (w *Window) RecordReceived(seq seqnum.Number) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.hasHighest || seqnum.IsAhead(seq, w.highest, w.toleranceBits) {
		w.highest = seq
		w.hasHighest = true
	}
}

// Advance slides the window forward when the highest received number has
// passed its midpoint, regenerating the evicted slots with the tokens of
// the numbers admitted at the top. It returns the number of positions moved.
func (w *Window) Advance(key interfaces.IKeyMaterial) uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.slots == nil {
		return 0
	}

	mid := seqnum.Add(w.base, uint32(w.capacity/2))
	if !seqnum.IsAhead(w.highest, mid, w.toleranceBits) {
		return 0
	}

	moveBy := seqnum.Distance(mid, w.highest)
	fields := logrus.Fields{
		"function": "Window.Advance",
		"move_by":  moveBy,
		"base":     w.base,
		"highest":  w.highest,
		"capacity": w.capacity,
	}

	switch {
	case moveBy == 0 || uint64(moveBy) > seqnum.HalfWindow(w.toleranceBits):
		// the ordering guard and the distance disagree; never slide backwards
		logrus.WithFields(fields).Warn("Tried moving watch list pointer backwards, ignoring")
		return 0
	case uint64(moveBy) > uint64(w.capacity):
		logrus.WithFields(fields).Warn("Moving watch list pointer by more than its capacity")
	default:
		logrus.WithFields(fields).Debug("Moving watch list pointer")
	}

	w.slide(moveBy, key)
	return moveBy
}

// slide admits moveBy new numbers at the top of the window. When moveBy
// exceeds the capacity only the last capacity numbers survive, so the
// earlier ones are skipped; the resulting state is the same as writing
// every slot once per admitted number.
func (w *Window) slide(moveBy uint32, key interfaces.IKeyMaterial) {
	capacity := uint64(w.capacity)
	top := seqnum.Add(w.base, uint32(w.capacity))

	var skip uint64
	if uint64(moveBy) > capacity {
		skip = uint64(moveBy) - capacity
	}

	for j := skip; j < uint64(moveBy); j++ {
		slot := (uint64(w.start) + j) % capacity
		w.slots[slot] = Encode(seqnum.Add(top, uint32(j)), key)
	}

	w.start = int((uint64(w.start) + uint64(moveBy)) % capacity)
	w.base = seqnum.Add(w.base, moveBy)
}

// PossibleMatch compares the TokenLength bytes at buf[offset:] with every
// watched token, lowest sequence number first, and returns the first match
// that is ahead of minSeq. It never mutates the window. A short buffer, a bad
// offset, or an uninitialized window yields no match.
func (w *Window) PossibleMatch(buf []byte, offset int, minSeq seqnum.Number) (seqnum.Number, bool) {
	if offset < 0 || offset > len(buf)-limits.TokenLength {
		return 0, false
	}
	var candidate Token
	copy(candidate[:], buf[offset:offset+limits.TokenLength])

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.slots == nil {
		return 0, false
	}

	for i := 0; i < w.capacity; i++ {
		if w.slots[(w.start+i)%w.capacity] != candidate {
			continue
		}
		seq := seqnum.Add(w.base, uint32(i))
		if seqnum.IsAhead(seq, minSeq, w.toleranceBits) {
			return seq, true
		}
	}
	return 0, false
}
