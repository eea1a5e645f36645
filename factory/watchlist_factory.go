package factory

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/opd-ai/seqwatch/crypto"
	"github.com/opd-ai/seqwatch/interfaces"
	"github.com/opd-ai/seqwatch/limits"
	"github.com/opd-ai/seqwatch/seqnum"
	simulation "github.com/opd-ai/seqwatch/testing"
	"github.com/opd-ai/seqwatch/transport"
	"github.com/opd-ai/seqwatch/watchlist"
	"github.com/sirupsen/logrus"
)

// Environment variables read by NewWatchListFactory.
const (
	EnvWatchListSize  = "SEQWATCH_WATCHLIST_SIZE"
	EnvToleranceBits  = "SEQWATCH_TOLERANCE_BITS"
	EnvRekeyThreshold = "SEQWATCH_REKEY_THRESHOLD"
	EnvKeepPrevious   = "SEQWATCH_KEEP_PREVIOUS_KEY"
)

// Validation constants for configuration bounds checking.
const (
	// MinRekeyThreshold is the smallest accepted rekey threshold.
	MinRekeyThreshold = 1
	// MaxRekeyThreshold keeps the rekey warning well before exhaustion.
	MaxRekeyThreshold = 1 << 24
)

// WatchListFactory creates watch lists, peer sessions, and simulators from
// a default configuration. It is safe for concurrent use; all methods are
// protected by an internal mutex.
type WatchListFactory struct {
	mu            sync.RWMutex
	defaultConfig interfaces.PacketFormatConfig
}

// SimulatorOption is a functional option for customizing a reorder simulator.
type SimulatorOption func(*simulation.SimulatorConfig)

// NewWatchListFactory creates a factory with default configuration and
// SEQWATCH_* environment overrides applied.
func NewWatchListFactory() *WatchListFactory {
	config := DefaultConfig()
	applyEnvironmentOverrides(&config)
	logConfigurationInfo(config)

	return &WatchListFactory{defaultConfig: config}
}

// DefaultConfig returns the built-in configuration: 1024 watched sequence
// numbers, 31 bit comparator tolerance, rekey 100 numbers before
// exhaustion, and the previous key kept after a rekey.
func DefaultConfig() interfaces.PacketFormatConfig {
	return interfaces.PacketFormatConfig{
		WatchList: interfaces.WatchListConfig{
			Capacity:      limits.DefaultWatchListSize,
			ToleranceBits: seqnum.DefaultToleranceBits,
		},
		RekeyThreshold:  limits.DefaultRekeyThreshold,
		KeepPreviousKey: true,
	}
}

// applyEnvironmentOverrides updates configuration based on environment variables.
// Each value that fails to parse or validate is logged and ignored.
func applyEnvironmentOverrides(config *interfaces.PacketFormatConfig) {
	parseWatchListSize(config)
	parseToleranceBits(config)
	parseRekeyThreshold(config)
	parseKeepPrevious(config)
}

func warnEnv(function, envVar string, value, using interface{}, err error, msg string) {
	fields := logrus.Fields{
		"function":    function,
		"env_var":     envVar,
		"value":       value,
		"using_value": using,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logrus.WithFields(fields).Warn(msg)
}

// parseWatchListSize reads SEQWATCH_WATCHLIST_SIZE. The tolerance must
// still cover the new size, so both are checked together.
func parseWatchListSize(config *interfaces.PacketFormatConfig) {
	raw := os.Getenv(EnvWatchListSize)
	if raw == "" {
		return
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		warnEnv("parseWatchListSize", EnvWatchListSize, raw, config.WatchList.Capacity, err,
			"Failed to parse "+EnvWatchListSize+" environment variable, using default")
		return
	}
	candidate := interfaces.WatchListConfig{Capacity: size, ToleranceBits: config.WatchList.ToleranceBits}
	if err := candidate.Validate(); err != nil {
		warnEnv("parseWatchListSize", EnvWatchListSize, size, config.WatchList.Capacity, err,
			EnvWatchListSize+" value out of bounds, using default")
		return
	}
	config.WatchList.Capacity = size
}

func parseToleranceBits(config *interfaces.PacketFormatConfig) {
	raw := os.Getenv(EnvToleranceBits)
	if raw == "" {
		return
	}
	bits, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		warnEnv("parseToleranceBits", EnvToleranceBits, raw, config.WatchList.ToleranceBits, err,
			"Failed to parse "+EnvToleranceBits+" environment variable, using default")
		return
	}
	if err := limits.ValidateToleranceBits(uint(bits), config.WatchList.Capacity); err != nil {
		warnEnv("parseToleranceBits", EnvToleranceBits, bits, config.WatchList.ToleranceBits, err,
			EnvToleranceBits+" value out of bounds, using default")
		return
	}
	config.WatchList.ToleranceBits = uint(bits)
}

func parseRekeyThreshold(config *interfaces.PacketFormatConfig) {
	raw := os.Getenv(EnvRekeyThreshold)
	if raw == "" {
		return
	}
	threshold, err := strconv.Atoi(raw)
	if err != nil {
		warnEnv("parseRekeyThreshold", EnvRekeyThreshold, raw, config.RekeyThreshold, err,
			"Failed to parse "+EnvRekeyThreshold+" environment variable, using default")
		return
	}
	if threshold < MinRekeyThreshold || threshold > MaxRekeyThreshold {
		warnEnv("parseRekeyThreshold", EnvRekeyThreshold, threshold, config.RekeyThreshold, nil,
			EnvRekeyThreshold+" value out of bounds, using default")
		return
	}
	config.RekeyThreshold = uint32(threshold)
}

func parseKeepPrevious(config *interfaces.PacketFormatConfig) {
	raw := os.Getenv(EnvKeepPrevious)
	if raw == "" {
		return
	}
	keep, err := strconv.ParseBool(raw)
	if err != nil {
		warnEnv("parseKeepPrevious", EnvKeepPrevious, raw, config.KeepPreviousKey, err,
			"Failed to parse "+EnvKeepPrevious+" environment variable, using default")
		return
	}
	config.KeepPreviousKey = keep
}

func logConfigurationInfo(config interfaces.PacketFormatConfig) {
	logrus.WithFields(logrus.Fields{
		"function":          "NewWatchListFactory",
		"watchlist_size":    config.WatchList.Capacity,
		"tolerance_bits":    config.WatchList.ToleranceBits,
		"rekey_threshold":   config.RekeyThreshold,
		"keep_previous_key": config.KeepPreviousKey,
	}).Info("Created watch list factory with configuration")
}

// GetCurrentConfig returns a copy of the current default configuration.
func (f *WatchListFactory) GetCurrentConfig() interfaces.PacketFormatConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultConfig
}

// UpdateDefaultConfig replaces the default configuration after validating it.
func (f *WatchListFactory) UpdateDefaultConfig(config *interfaces.PacketFormatConfig) error {
	if config == nil {
		return errors.New("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":     "UpdateDefaultConfig",
		"old_capacity": f.defaultConfig.WatchList.Capacity,
		"new_capacity": config.WatchList.Capacity,
		"old_rekey":    f.defaultConfig.RekeyThreshold,
		"new_rekey":    config.RekeyThreshold,
	}).Info("Updating factory configuration")

	f.defaultConfig = *config
	return nil
}

// CreateWindow creates an uninitialized watch list from the default configuration.
func (f *WatchListFactory) CreateWindow() (*watchlist.Window, error) {
	config := f.GetCurrentConfig()
	return watchlist.NewWindow(config.WatchList)
}

// CreatePeerSession creates a peer session from the default configuration.
// If key is not nil it is installed as the session's first key.
func (f *WatchListFactory) CreatePeerSession(key *crypto.SessionKey) (*transport.PeerSession, error) {
	session, err := transport.NewPeerSession(f.GetCurrentConfig())
	if err != nil {
		return nil, err
	}
	if key != nil {
		if err := session.Rekey(key); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// WithDropRate sets the probability a simulated datagram is lost.
func WithDropRate(rate float64) SimulatorOption {
	return func(c *simulation.SimulatorConfig) {
		c.DropRate = rate
	}
}

// WithDuplicateRate sets the probability a simulated datagram arrives twice.
func WithDuplicateRate(rate float64) SimulatorOption {
	return func(c *simulation.SimulatorConfig) {
		c.DuplicateRate = rate
	}
}

// WithReorderDepth sets how far a simulated datagram can fall behind.
func WithReorderDepth(depth int) SimulatorOption {
	return func(c *simulation.SimulatorConfig) {
		c.ReorderDepth = depth
	}
}

// CreateSimulator creates a reorder simulator seeded with seed. Unless
// overridden, datagrams are reordered by up to a quarter of the watch list
// size, which every peer session built by this factory tolerates.
func (f *WatchListFactory) CreateSimulator(seed int64, opts ...SimulatorOption) (*simulation.ReorderSimulator, error) {
	config := simulation.SimulatorConfig{
		Seed:         seed,
		ReorderDepth: f.GetCurrentConfig().WatchList.Capacity / 4,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return simulation.NewReorderSimulator(config)
}
