package testing

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// SimulatorConfig configures a ReorderSimulator.
type SimulatorConfig struct {
	// Seed makes runs reproducible
	Seed int64

	// DropRate is the probability in [0, 1] that a datagram is lost
	DropRate float64

	// DuplicateRate is the probability in [0, 1] that a datagram arrives twice
	DuplicateRate float64

	// ReorderDepth is the largest number of later sends a datagram can be
	// held back behind. Zero keeps send order.
	ReorderDepth int
}

// Validate checks rates and depth.
func (c SimulatorConfig) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop rate %v not in [0, 1]", c.DropRate)
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return fmt.Errorf("duplicate rate %v not in [0, 1]", c.DuplicateRate)
	}
	if c.ReorderDepth < 0 {
		return errors.New("reorder depth must not be negative")
	}
	return nil
}

// DeliveryRecord describes what happened to one sent datagram.
type DeliveryRecord struct {
	Index      int
	PacketSize int
	Dropped    bool
	Duplicated bool
	Delays     []int
}

// SimulatorStats counts datagrams through a ReorderSimulator.
type SimulatorStats struct {
	Sent       int
	Dropped    int
	Duplicated int
	Delivered  int
}

type heldDatagram struct {
	data  []byte
	due   int
	order int
}

// ReorderSimulator is a deterministic lossy channel. Each Send returns the
// datagrams that arrive at that moment, which may include earlier datagrams
// that were held back and may omit the one just sent.
type ReorderSimulator struct {
	mu      sync.Mutex
	config  SimulatorConfig
	rng     *rand.Rand
	tick    int
	order   int
	pending []heldDatagram
	log     []DeliveryRecord
	stats   SimulatorStats
}

// NewReorderSimulator creates a simulator from config.
func NewReorderSimulator(config SimulatorConfig) (*ReorderSimulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":       "NewReorderSimulator",
		"seed":           config.Seed,
		"drop_rate":      config.DropRate,
		"duplicate_rate": config.DuplicateRate,
		"reorder_depth":  config.ReorderDepth,
	}).Info("Creating reorder simulator")

	return &ReorderSimulator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// Send puts a datagram on the channel and returns what arrives now.
// The datagram is copied.
func (s *ReorderSimulator) Send(datagram []byte) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := DeliveryRecord{Index: s.stats.Sent, PacketSize: len(datagram)}
	s.stats.Sent++

	if s.rng.Float64() < s.config.DropRate {
		record.Dropped = true
		s.stats.Dropped++
	} else {
		copies := 1
		if s.rng.Float64() < s.config.DuplicateRate {
			record.Duplicated = true
			s.stats.Duplicated++
			copies = 2
		}
		for i := 0; i < copies; i++ {
			delay := s.rng.Intn(s.config.ReorderDepth + 1)
			record.Delays = append(record.Delays, delay)
			s.hold(datagram, s.tick+delay)
		}
	}
	s.log = append(s.log, record)

	out := s.release(s.tick)
	s.tick++
	return out
}

// Flush returns every datagram still held, in arrival order.
func (s *ReorderSimulator) Flush() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.release(int(^uint(0) >> 1))
}

// Log returns a copy of the delivery records.
func (s *ReorderSimulator) Log() []DeliveryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeliveryRecord(nil), s.log...)
}

// Stats returns the channel counters.
func (s *ReorderSimulator) Stats() SimulatorStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *ReorderSimulator) hold(datagram []byte, due int) {
	s.pending = append(s.pending, heldDatagram{
		data:  append([]byte(nil), datagram...),
		due:   due,
		order: s.order,
	})
	s.order++
}

// release removes and returns the held datagrams due by now, earliest due
// first and in send order among equals.
func (s *ReorderSimulator) release(now int) [][]byte {
	sort.SliceStable(s.pending, func(i, j int) bool {
		if s.pending[i].due != s.pending[j].due {
			return s.pending[i].due < s.pending[j].due
		}
		return s.pending[i].order < s.pending[j].order
	})

	n := 0
	for n < len(s.pending) && s.pending[n].due <= now {
		n++
	}
	if n == 0 {
		return nil
	}

	out := make([][]byte, n)
	for i := range out {
		out[i] = s.pending[i].data
	}
	s.pending = append(s.pending[:0], s.pending[n:]...)
	s.stats.Delivered += n
	return out
}
