package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/twofish"
)

var (
	// ErrUnknownCipherSuite indicates a suite name this build does not implement
	ErrUnknownCipherSuite = errors.New("unknown cipher suite")
	// ErrNoCommonCipherSuite indicates the peers share no cipher suite
	ErrNoCommonCipherSuite = errors.New("no compatible cipher suite found")
	// ErrInvalidKeyLength indicates key material of the wrong size for a suite
	ErrInvalidKeyLength = errors.New("invalid key length")
)

// CipherSuite names the block cipher used for both the packet keystream and
// the IV blinding cipher of a session. All suites have a 16 byte block, which
// is also the IV and nonce length.
type CipherSuite struct {
	Name     string // Wire name, e.g. "AES256"
	KeySize  int    // Key size in bytes
	newBlock func(key []byte) (cipher.Block, error)
}

// Predefined cipher suites in order of preference (most preferred first)
var (
	AES256Suite = CipherSuite{
		Name:     "AES256",
		KeySize:  32,
		newBlock: aes.NewCipher,
	}

	Twofish256Suite = CipherSuite{
		Name:    "Twofish256",
		KeySize: 32,
		newBlock: func(key []byte) (cipher.Block, error) {
			return twofish.NewCipher(key)
		},
	}

	AES128Suite = CipherSuite{
		Name:     "AES128",
		KeySize:  16,
		newBlock: aes.NewCipher,
	}
)

// SupportedCipherSuites lists all supported cipher suites
var SupportedCipherSuites = []CipherSuite{
	AES256Suite,
	Twofish256Suite,
	AES128Suite,
}

// DefaultCipherSuite is used when no negotiation took place.
var DefaultCipherSuite = AES256Suite

// BlockSize returns the block size shared by every supported suite.
func (s CipherSuite) BlockSize() int {
	return aes.BlockSize
}

// NewBlock creates the suite's block cipher for key.
func (s CipherSuite) NewBlock(key []byte) (cipher.Block, error) {
	if s.newBlock == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipherSuite, s.Name)
	}
	if len(key) != s.KeySize {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidKeyLength, s.Name, s.KeySize, len(key))
	}
	block, err := s.newBlock(key)
	if err != nil {
		return nil, fmt.Errorf("%s cipher: %w", s.Name, err)
	}
	return block, nil
}

// CipherSuiteByName looks up a supported suite by its wire name.
func CipherSuiteByName(name string) (CipherSuite, error) {
	for _, suite := range SupportedCipherSuites {
		if suite.Name == name {
			return suite, nil
		}
	}
	return CipherSuite{}, fmt.Errorf("%w: %q", ErrUnknownCipherSuite, name)
}

// CipherSuiteNegotiator handles cipher suite selection between peers
type CipherSuiteNegotiator struct {
	LocalPreferences   []CipherSuite
	RemoteCapabilities []string
	SelectedSuite      *CipherSuite
}

// NewCipherSuiteNegotiator creates a negotiator preferring SupportedCipherSuites in order
func NewCipherSuiteNegotiator() *CipherSuiteNegotiator {
	return &CipherSuiteNegotiator{
		LocalPreferences: SupportedCipherSuites,
	}
}

// SetRemoteCapabilities records the remote peer's advertised suite names
func (n *CipherSuiteNegotiator) SetRemoteCapabilities(remote []string) {
	n.RemoteCapabilities = remote
}

// NegotiateCipherSuite selects the first local preference that the remote also supports
func (n *CipherSuiteNegotiator) NegotiateCipherSuite() (*CipherSuite, error) {
	if len(n.RemoteCapabilities) == 0 {
		return nil, errors.New("no remote capabilities provided")
	}

	for _, local := range n.LocalPreferences {
		for _, remote := range n.RemoteCapabilities {
			if local.Name == remote {
				selected := local
				n.SelectedSuite = &selected
				return &selected, nil
			}
		}
	}

	return nil, ErrNoCommonCipherSuite
}

// SerializeCipherSuites encodes suite names for a handshake payload
func SerializeCipherSuites(suites []CipherSuite) []byte {
	names := make([]string, len(suites))
	for i, s := range suites {
		names[i] = s.Name
	}
	return []byte(strings.Join(names, ","))
}

// DeserializeCipherSuites decodes a handshake payload into suite names.
// Unknown names are kept so the negotiator can skip them.
func DeserializeCipherSuites(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(string(data), ",")
}
