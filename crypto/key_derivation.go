package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"
)

const (
	sessionKeyInfo = "SEQWATCH_SESSION_KEYS_V1"
	hmacKeySize    = 32
)

// DeriveSessionKey expands a handshake secret into a SessionKey using
// HKDF-SHA256. Both peers derive identical material; initiator selects
// which half is outgoing, so one side's outgoing key is the other's incoming.
// The first sequence number of each direction is derived as well, so peers
// need not exchange them.
func DeriveSessionKey(secret, salt []byte, suite CipherSuite, initiator bool) (*SessionKey, error) {
	logger := NewLogger("DeriveSessionKey").WithFields(logrus.Fields{
		"suite":     suite.Name,
		"initiator": initiator,
	})

	if len(secret) == 0 {
		return nil, errors.New("empty handshake secret")
	}

	reader := hkdf.New(sha256.New, secret, salt, []byte(sessionKeyInfo+"|"+suite.Name))
	read := func(n int) ([]byte, error) {
		buf := make([]byte, n)
		if _, err := io.ReadFull(reader, buf); err != nil {
			return nil, fmt.Errorf("hkdf expand: %w", err)
		}
		return buf, nil
	}

	var parts [9][]byte
	sizes := [9]int{
		suite.KeySize, suite.KeySize, // initiator, responder stream keys
		suite.KeySize, suite.BlockSize(), // IV key, IV nonce
		hmacKeySize, hmacKeySize, // initiator, responder HMAC keys
		4, 4, // initiator, responder first sequence numbers
		8, // tracker id
	}
	for i, n := range sizes {
		b, err := read(n)
		if err != nil {
			return nil, err
		}
		parts[i] = b
	}
	defer func() {
		for _, p := range parts {
			ZeroBytes(p)
		}
	}()

	m := SessionKeyMaterial{
		IVKey:     parts[2],
		IVNonce:   parts[3],
		TrackerID: binary.BigEndian.Uint64(parts[8]),
	}
	initFirst := binary.BigEndian.Uint32(parts[6])
	respFirst := binary.BigEndian.Uint32(parts[7])
	if initiator {
		m.OutgoingKey, m.IncomingKey = parts[0], parts[1]
		m.OutgoingHMACKey, m.IncomingHMACKey = parts[4], parts[5]
		m.OurFirstSeq, m.TheirFirstSeq = initFirst, respFirst
	} else {
		m.OutgoingKey, m.IncomingKey = parts[1], parts[0]
		m.OutgoingHMACKey, m.IncomingHMACKey = parts[5], parts[4]
		m.OurFirstSeq, m.TheirFirstSeq = respFirst, initFirst
	}

	sk, err := NewSessionKey(suite, m)
	if err != nil {
		logger.WithError(err, "KeyConstruction", "new_session_key").Error("Failed to build session key")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"tracker_id":      fmt.Sprintf("%016x", sk.TrackerID),
		"our_first_seq":   sk.OurFirstSeq,
		"their_first_seq": sk.TheirFirstSeq,
	}).Debug("Derived session key")

	return sk, nil
}
