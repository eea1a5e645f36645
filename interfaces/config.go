package interfaces

import (
	"errors"
	"fmt"

	"github.com/opd-ai/seqwatch/limits"
)

// WatchListConfig holds construction-time parameters of a watch list.
type WatchListConfig struct {
	// Capacity is the number of sequence numbers watched at once
	Capacity int

	// ToleranceBits is the comparator tolerance for ordering decisions
	ToleranceBits uint
}

// Validate checks the config against the limits package bounds.
func (c *WatchListConfig) Validate() error {
	if c == nil {
		return errors.New("nil watch list config")
	}
	if err := limits.ValidateWindowCapacity(c.Capacity); err != nil {
		return err
	}
	return limits.ValidateToleranceBits(c.ToleranceBits, c.Capacity)
}

// PacketFormatConfig holds construction-time parameters of a peer's packet format.
type PacketFormatConfig struct {
	WatchList WatchListConfig

	// RekeyThreshold is how many outgoing sequence numbers may remain under
	// the current key before a rekey is requested
	RekeyThreshold uint32

	// KeepPreviousKey keeps decoding packets under the key replaced by the
	// last rekey, for stragglers still in flight
	KeepPreviousKey bool
}

// Validate checks the config and its embedded watch list config.
func (c *PacketFormatConfig) Validate() error {
	if c == nil {
		return errors.New("nil packet format config")
	}
	if err := c.WatchList.Validate(); err != nil {
		return fmt.Errorf("watch list: %w", err)
	}
	if c.RekeyThreshold == 0 {
		return errors.New("rekey threshold must be positive")
	}
	return nil
}
