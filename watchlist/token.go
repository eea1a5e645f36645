package watchlist

import (
	"crypto/cipher"
	"encoding/binary"

	"github.com/opd-ai/seqwatch/interfaces"
	"github.com/opd-ai/seqwatch/limits"
	"github.com/opd-ai/seqwatch/seqnum"
)

// Token is the encrypted form of a sequence number as it appears on the wire.
// Only equality is defined on tokens.
type Token [limits.TokenLength]byte

// Encode derives the watch token for seq under key. It is deterministic and
// has no side effects on key.
func Encode(seq seqnum.Number, key interfaces.IKeyMaterial) Token {
	var tok Token
	binary.BigEndian.PutUint32(tok[:], uint32(seq))
	EncryptStream(seq, key).XORKeyStream(tok[:], tok[:])
	return tok
}

// EncryptStream returns the keystream a sender encrypts the body of packet
// seq with. The first TokenLength bytes it produces over the big-endian
// sequence number are that packet's token.
func EncryptStream(seq seqnum.Number, key interfaces.IKeyMaterial) cipher.Stream {
	//lint:ignore SA1019 CFB output equals PCFB's for the token block, which keeps the wire format of PCFB peers
	return cipher.NewCFBEncrypter(key.StreamCipher(), blindedIV(seq, key))
}

// DecryptStream returns the inverse of EncryptStream for the receiver.
func DecryptStream(seq seqnum.Number, key interfaces.IKeyMaterial) cipher.Stream {
	//lint:ignore SA1019 must mirror EncryptStream for wire compatibility with PCFB peers
	return cipher.NewCFBDecrypter(key.StreamCipher(), blindedIV(seq, key))
}

// blindedIV builds nonce||seq in one block and enciphers it, so that
// consecutive sequence numbers do not yield related IVs.
func blindedIV(seq seqnum.Number, key interfaces.IKeyMaterial) []byte {
	ivCipher := key.IVCipher()
	iv := make([]byte, ivCipher.BlockSize())
	copy(iv, key.IVNonce())
	binary.BigEndian.PutUint32(iv[len(iv)-4:], uint32(seq))
	ivCipher.Encrypt(iv, iv)
	return iv
}
