package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/opd-ai/seqwatch/limits"
	"github.com/opd-ai/seqwatch/seqnum"
	"github.com/opd-ai/seqwatch/watchlist"
	"github.com/sirupsen/logrus"
)

// Packet layout:
//
//	+----------------+----------------------------------------+
//	| HMAC (10 bytes)| E(seq big-endian (4 bytes) || payload) |
//	+----------------+----------------------------------------+
//
// E is the sender's outgoing stream under the blinded IV of seq, so the four
// bytes after the HMAC are exactly the watch token of seq. The HMAC is
// HMAC-SHA256 over the encrypted part, truncated.

// Seal allocates the next outgoing sequence number and returns the datagram
// carrying payload under it.
func (kc *KeyContext) Seal(payload []byte) ([]byte, seqnum.Number, error) {
	if err := limits.ValidatePayload(payload); err != nil {
		return nil, 0, err
	}

	seq, err := kc.AllocateSeq()
	if err != nil {
		return nil, 0, err
	}

	out := kc.key.Outgoing()
	packet := make([]byte, limits.MinPacketSize+len(payload))
	body := packet[limits.HMACLength:]
	binary.BigEndian.PutUint32(body, uint32(seq))
	copy(body[limits.TokenLength:], payload)

	watchlist.EncryptStream(seq, out).XORKeyStream(body, body)
	copy(packet[:limits.HMACLength], packetMAC(out.HMACKey(), body))

	return packet, seq, nil
}

// Open authenticates and decrypts a datagram sent under this key. The
// sequence number is found through the watch list: the first candidate
// search starts just below the window, and a candidate whose decrypted
// number disagrees resumes the search after it. On success the number is
// recorded as received.
//
// Open fails with ErrBadHMAC if the datagram was not sent under this key and
// with ErrNoMatch if it was but its number is not watched.
func (kc *KeyContext) Open(datagram []byte) (seqnum.Number, []byte, error) {
	if err := limits.ValidatePacket(datagram); err != nil {
		return 0, nil, err
	}

	in := kc.key.Incoming()
	body := datagram[limits.HMACLength:]
	if !hmac.Equal(datagram[:limits.HMACLength], packetMAC(in.HMACKey(), body)) {
		return 0, nil, ErrBadHMAC
	}

	window := kc.watch()
	minSeq := window.Base() - 1
	plain := make([]byte, len(body))

	for {
		seq, ok := window.PossibleMatch(datagram, limits.HMACLength, minSeq)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"function": "KeyContext.Open",
				"base":     window.Base(),
				"highest":  window.HighestReceived(),
			}).Debug("Authentic packet outside watch list")
			return 0, nil, ErrNoMatch
		}

		watchlist.DecryptStream(seq, in).XORKeyStream(plain, body)
		if seqnum.Number(binary.BigEndian.Uint32(plain)) == seq {
			window.RecordReceived(seq)
			return seq, plain[limits.TokenLength:], nil
		}

		logrus.WithFields(logrus.Fields{
			"function":  "KeyContext.Open",
			"candidate": seq,
		}).Debug("Token collision, continuing search")
		minSeq = seq
	}
}

func packetMAC(key, body []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return mac.Sum(nil)[:limits.HMACLength]
}
