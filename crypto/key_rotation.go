package crypto

import (
	"errors"
	"time"
)

// MinRotationPeriod keeps rekeys from dominating link traffic.
const MinRotationPeriod = time.Minute

// KeyRotationConfig represents the configuration for session key rotation
type KeyRotationConfig struct {
	RotationPeriod time.Duration `json:"rotation_period"` // Maximum session key age
	Enabled        bool          `json:"enabled"`         // Whether age-based rotation is enabled
}

// KeyRotationPolicy decides when a session key is old enough to replace.
// Sequence number exhaustion is tracked separately by the packet layer.
type KeyRotationPolicy struct {
	config       KeyRotationConfig
	timeProvider TimeProvider
}

// NewKeyRotationPolicy creates a policy rotating keys after one hour.
func NewKeyRotationPolicy() *KeyRotationPolicy {
	return NewKeyRotationPolicyWithTimeProvider(nil)
}

// NewKeyRotationPolicyWithTimeProvider creates a policy with an injectable
// clock. Pass nil to use the package default.
func NewKeyRotationPolicyWithTimeProvider(tp TimeProvider) *KeyRotationPolicy {
	if tp == nil {
		tp = GetDefaultTimeProvider()
	}
	return &KeyRotationPolicy{
		config: KeyRotationConfig{
			RotationPeriod: time.Hour,
			Enabled:        true,
		},
		timeProvider: tp,
	}
}

// SetRotationPeriod updates the maximum key age.
func (p *KeyRotationPolicy) SetRotationPeriod(period time.Duration) error {
	if period < MinRotationPeriod {
		return errors.New("rotation period must be at least 1 minute")
	}
	p.config.RotationPeriod = period
	return nil
}

// SetEnabled turns age-based rotation on or off.
func (p *KeyRotationPolicy) SetEnabled(enabled bool) {
	p.config.Enabled = enabled
}

// ShouldRotate reports whether sk has outlived the rotation period.
func (p *KeyRotationPolicy) ShouldRotate(sk *SessionKey) bool {
	if !p.config.Enabled || sk == nil {
		return false
	}
	return sk.Age(p.timeProvider) >= p.config.RotationPeriod
}

// GetConfig returns a copy of the current configuration
func (p *KeyRotationPolicy) GetConfig() KeyRotationConfig {
	return p.config
}
