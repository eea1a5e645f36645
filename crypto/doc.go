// Package crypto holds the session key material used by the encrypted
// packet format.
//
// A session with a peer is described by a [SessionKey]: a pair of
// [DirectionalKey] values (incoming and outgoing), each made of a block
// cipher driven in CFB mode over packet bodies, a shared IV blinding cipher,
// a shared IV nonce, and a per-direction HMAC key.
//
// # Cipher Suites
//
// Suites are named by their block cipher. All share a 16 byte block:
//
//   - AES256 (crypto/aes, default)
//   - Twofish256 (golang.org/x/crypto/twofish)
//   - AES128
//
// Peers advertise suite names during the handshake and pick the first local
// preference the remote also supports:
//
//	n := crypto.NewCipherSuiteNegotiator()
//	n.SetRemoteCapabilities(crypto.DeserializeCipherSuites(payload))
//	suite, err := n.NegotiateCipherSuite()
//
// # Key Derivation
//
// DeriveSessionKey expands a handshake secret with HKDF-SHA256
// (golang.org/x/crypto/hkdf). Both peers derive the same bytes; the
// initiator flag decides which half is outgoing, so each side's outgoing
// key is the other's incoming key:
//
//	sk, err := crypto.DeriveSessionKey(secret, nil, suite, true)
//	tokenKey := sk.Incoming() // keys the watch list for packets we receive
//
// # Rotation
//
// KeyRotationPolicy reports when a key has exceeded its age limit. Rotating
// a key invalidates every watch list derived from it.
//
// # Secure Memory Handling
//
// SessionKey.Wipe and SecureWipe erase raw key bytes once they are no
// longer needed. transport.PeerSession wipes every key it discards.
//
// # Thread Safety
//
// SessionKey is immutable after construction and safe for concurrent use
// until Wipe, which must not race with users of the key.
// KeyRotationPolicy is not; guard it with the owner's lock.
package crypto
