package noise

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"github.com/opd-ai/seqwatch/crypto"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

var (
	// ErrHandshakeNotComplete indicates handshake is still in progress
	ErrHandshakeNotComplete = errors.New("handshake not complete")
	// ErrInvalidMessage indicates received message is invalid for current state
	ErrInvalidMessage = errors.New("invalid message for current handshake state")
	// ErrHandshakeComplete indicates handshake is already complete
	ErrHandshakeComplete = errors.New("handshake already complete")
	// ErrWrongRole indicates a step that the other side of the handshake performs
	ErrWrongRole = errors.New("operation not valid for this handshake role")
)

// StaticKeySize is the size of Curve25519 static keys.
const StaticKeySize = 32

// exporterLabel separates exported secrets from any transport use of the
// cipher states.
var exporterLabel = []byte("seqwatch exporter v1")

// HandshakeRole defines whether we're initiating or responding to handshake
type HandshakeRole uint8

const (
	// Initiator starts the handshake (knows peer's static key)
	Initiator HandshakeRole = iota
	// Responder responds to handshake initiation
	Responder
)

func (r HandshakeRole) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// GenerateStaticKey creates a new Curve25519 static key pair.
func GenerateStaticKey() (private, public []byte, err error) {
	kp, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate static key: %w", err)
	}
	return kp.Private, kp.Public, nil
}

// PublicKeyFromPrivate derives the Curve25519 public key of a static private key.
func PublicKeyFromPrivate(private []byte) ([]byte, error) {
	if len(private) != StaticKeySize {
		return nil, fmt.Errorf("static private key must be %d bytes, got %d", StaticKeySize, len(private))
	}
	return curve25519.X25519(private, curve25519.Basepoint)
}

// IKHandshake runs a Noise IK handshake that also negotiates the cipher
// suite used for packet encryption. The initiator's first message carries
// its suite preferences; the responder's reply carries the selected suite.
//
// After completion both sides derive the same crypto.SessionKey, mirrored
// so that each side's outgoing key is the other's incoming key.
type IKHandshake struct {
	role  HandshakeRole
	state *noise.HandshakeState

	// flynn/noise returns the initiator-to-responder state first for both roles
	initToResp *noise.CipherState
	respToInit *noise.CipherState
	complete   bool

	localPublic []byte
	negotiator  *crypto.CipherSuiteNegotiator
	suite       *crypto.CipherSuite
	secret      []byte
}

// NewIKHandshake creates a new IK pattern handshake.
// staticPrivKey is our long-term private key (32 bytes).
// peerPubKey is peer's long-term public key (32 bytes, nil for responder).
// suites lists the cipher suites we accept, most preferred first; nil means
// crypto.SupportedCipherSuites.
func NewIKHandshake(staticPrivKey, peerPubKey []byte, role HandshakeRole, suites []crypto.CipherSuite) (*IKHandshake, error) {
	if len(staticPrivKey) != StaticKeySize {
		return nil, fmt.Errorf("static private key must be %d bytes, got %d", StaticKeySize, len(staticPrivKey))
	}
	if role == Initiator && len(peerPubKey) != StaticKeySize {
		return nil, fmt.Errorf("initiator requires peer public key (%d bytes), got %d", StaticKeySize, len(peerPubKey))
	}

	public, err := PublicKeyFromPrivate(staticPrivKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive keypair: %w", err)
	}

	staticKey := noise.DHKey{
		Private: append([]byte(nil), staticPrivKey...),
		Public:  public,
	}

	config := noise.Config{
		CipherSuite:   noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256),
		Random:        rand.Reader,
		Pattern:       noise.HandshakeIK,
		Initiator:     role == Initiator,
		StaticKeypair: staticKey,
	}
	if role == Initiator {
		config.PeerStatic = append([]byte(nil), peerPubKey...)
	}

	state, err := noise.NewHandshakeState(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}

	negotiator := crypto.NewCipherSuiteNegotiator()
	if len(suites) > 0 {
		negotiator.LocalPreferences = suites
	}

	return &IKHandshake{
		role:        role,
		state:       state,
		localPublic: public,
		negotiator:  negotiator,
	}, nil
}

// WriteMessage produces our next handshake message.
// The initiator calls it with nil to create the first message (-> e, es, s, ss).
// The responder calls it with the initiator's message; it negotiates the
// cipher suite and returns the reply (<- e, ee, se), completing its side.
func (ik *IKHandshake) WriteMessage(receivedMessage []byte) ([]byte, bool, error) {
	if ik.complete {
		return nil, false, ErrHandshakeComplete
	}

	if ik.role == Initiator {
		return ik.writeInitiation()
	}
	return ik.writeResponse(receivedMessage)
}

func (ik *IKHandshake) writeInitiation() ([]byte, bool, error) {
	payload := crypto.SerializeCipherSuites(ik.negotiator.LocalPreferences)
	message, _, _, err := ik.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, false, fmt.Errorf("initiator write failed: %w", err)
	}
	return message, false, nil
}

func (ik *IKHandshake) writeResponse(receivedMessage []byte) ([]byte, bool, error) {
	if receivedMessage == nil {
		return nil, false, fmt.Errorf("%w: responder requires received message", ErrInvalidMessage)
	}

	payload, _, _, err := ik.state.ReadMessage(nil, receivedMessage)
	if err != nil {
		return nil, false, fmt.Errorf("responder read failed: %w", err)
	}

	ik.negotiator.SetRemoteCapabilities(crypto.DeserializeCipherSuites(payload))
	suite, err := ik.negotiator.NegotiateCipherSuite()
	if err != nil {
		return nil, false, fmt.Errorf("cipher suite negotiation: %w", err)
	}

	message, cs1, cs2, err := ik.state.WriteMessage(nil, []byte(suite.Name))
	if err != nil {
		return nil, false, fmt.Errorf("responder write failed: %w", err)
	}

	ik.suite = suite
	ik.initToResp, ik.respToInit = cs1, cs2
	ik.complete = true

	logrus.WithFields(logrus.Fields{
		"function": "IKHandshake.WriteMessage",
		"role":     ik.role.String(),
		"suite":    suite.Name,
	}).Debug("Handshake complete")

	return message, true, nil
}

// ReadMessage processes the responder's reply. Only the initiator reads
// replies; it completes the handshake and adopts the suite the responder
// selected, which must be one we offered.
func (ik *IKHandshake) ReadMessage(message []byte) (bool, error) {
	if ik.complete {
		return false, ErrHandshakeComplete
	}
	if ik.role != Initiator {
		return false, fmt.Errorf("%w: only initiator reads response messages", ErrWrongRole)
	}

	payload, cs1, cs2, err := ik.state.ReadMessage(nil, message)
	if err != nil {
		return false, fmt.Errorf("initiator read response failed: %w", err)
	}

	suite, err := ik.offeredSuite(string(payload))
	if err != nil {
		return false, err
	}

	ik.suite = &suite
	ik.initToResp, ik.respToInit = cs1, cs2
	ik.complete = true

	logrus.WithFields(logrus.Fields{
		"function": "IKHandshake.ReadMessage",
		"role":     ik.role.String(),
		"suite":    suite.Name,
	}).Debug("Handshake complete")

	return true, nil
}

func (ik *IKHandshake) offeredSuite(name string) (crypto.CipherSuite, error) {
	for _, s := range ik.negotiator.LocalPreferences {
		if s.Name == name {
			return s, nil
		}
	}
	return crypto.CipherSuite{}, fmt.Errorf("%w: responder selected %q", crypto.ErrNoCommonCipherSuite, name)
}

// IsComplete returns true if handshake is finished and cipher states are available.
func (ik *IKHandshake) IsComplete() bool {
	return ik.complete
}

// Role returns our side of the handshake.
func (ik *IKHandshake) Role() HandshakeRole {
	return ik.role
}

// Suite returns the negotiated cipher suite.
func (ik *IKHandshake) Suite() (crypto.CipherSuite, error) {
	if !ik.complete {
		return crypto.CipherSuite{}, ErrHandshakeNotComplete
	}
	return *ik.suite, nil
}

// SharedSecret returns a 96 byte secret both peers compute identically. It is
// exported from the two transport cipher states by encrypting a zero block
// under each, so the states' first nonce is spent.
func (ik *IKHandshake) SharedSecret() ([]byte, error) {
	if !ik.complete {
		return nil, ErrHandshakeNotComplete
	}
	if ik.secret != nil {
		return append([]byte(nil), ik.secret...), nil
	}

	var zero [32]byte
	secret := make([]byte, 0, 2*(len(zero)+16))
	for _, cs := range []*noise.CipherState{ik.initToResp, ik.respToInit} {
		if cs == nil {
			return nil, errors.New("cipher states not available")
		}
		out, err := cs.Encrypt(nil, exporterLabel, zero[:])
		if err != nil {
			return nil, fmt.Errorf("export secret: %w", err)
		}
		secret = append(secret, out...)
	}

	ik.secret = secret
	return append([]byte(nil), secret...), nil
}

// Salt returns the two ephemeral public keys, initiator's first, which both
// sides see identically.
func (ik *IKHandshake) Salt() ([]byte, error) {
	if !ik.complete {
		return nil, ErrHandshakeNotComplete
	}
	local := ik.state.LocalEphemeral().Public
	peer := ik.state.PeerEphemeral()
	salt := make([]byte, 0, len(local)+len(peer))
	if ik.role == Initiator {
		salt = append(append(salt, local...), peer...)
	} else {
		salt = append(append(salt, peer...), local...)
	}
	return salt, nil
}

// SessionKey derives the packet session key from the completed handshake.
func (ik *IKHandshake) SessionKey() (*crypto.SessionKey, error) {
	secret, err := ik.SharedSecret()
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(secret)

	salt, err := ik.Salt()
	if err != nil {
		return nil, err
	}
	return crypto.DeriveSessionKey(secret, salt, *ik.suite, ik.role == Initiator)
}

// GetRemoteStaticKey returns the peer's static public key after successful handshake.
func (ik *IKHandshake) GetRemoteStaticKey() ([]byte, error) {
	if !ik.complete {
		return nil, ErrHandshakeNotComplete
	}

	remoteKey := ik.state.PeerStatic()
	if len(remoteKey) == 0 {
		return nil, errors.New("remote static key not available")
	}
	return append([]byte(nil), remoteKey...), nil
}

// GetLocalStaticKey returns our static public key.
func (ik *IKHandshake) GetLocalStaticKey() []byte {
	return append([]byte(nil), ik.localPublic...)
}
