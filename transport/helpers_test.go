package transport

import (
	"bytes"
	"testing"

	"github.com/opd-ai/seqwatch/crypto"
	"github.com/opd-ai/seqwatch/interfaces"
	"github.com/opd-ai/seqwatch/limits"
	"github.com/opd-ai/seqwatch/seqnum"
	"github.com/stretchr/testify/require"
)

func testConfig(capacity int) interfaces.PacketFormatConfig {
	return interfaces.PacketFormatConfig{
		WatchList: interfaces.WatchListConfig{
			Capacity:      capacity,
			ToleranceBits: seqnum.DefaultToleranceBits,
		},
		RekeyThreshold:  limits.DefaultRekeyThreshold,
		KeepPreviousKey: true,
	}
}

// mirroredKeys builds the two ends of one session from fixed material.
// aliceFirst and bobFirst are the first numbers each side sends.
func mirroredKeys(t testing.TB, seed byte, aliceFirst, bobFirst uint32) (alice, bob *crypto.SessionKey) {
	t.Helper()
	suite := crypto.AES256Suite
	fill := func(n int, b byte) []byte { return bytes.Repeat([]byte{b}, n) }

	aliceToBob := fill(suite.KeySize, seed)
	bobToAlice := fill(suite.KeySize, seed+1)
	ivKey := fill(suite.KeySize, seed+2)
	nonce := fill(suite.BlockSize(), seed+3)
	macAB := fill(32, seed+4)
	macBA := fill(32, seed+5)
	tracker := uint64(seed)<<8 | 0x5a

	alice, err := crypto.NewSessionKey(suite, crypto.SessionKeyMaterial{
		IncomingKey: bobToAlice, OutgoingKey: aliceToBob,
		IVKey: ivKey, IVNonce: nonce,
		IncomingHMACKey: macBA, OutgoingHMACKey: macAB,
		OurFirstSeq: aliceFirst, TheirFirstSeq: bobFirst,
		TrackerID: tracker,
	})
	require.NoError(t, err)

	bob, err = crypto.NewSessionKey(suite, crypto.SessionKeyMaterial{
		IncomingKey: aliceToBob, OutgoingKey: bobToAlice,
		IVKey: ivKey, IVNonce: nonce,
		IncomingHMACKey: macAB, OutgoingHMACKey: macBA,
		OurFirstSeq: bobFirst, TheirFirstSeq: aliceFirst,
		TrackerID: tracker,
	})
	require.NoError(t, err)
	return alice, bob
}

func keyContextPair(t testing.TB, capacity int, seed byte, aliceFirst, bobFirst uint32) (alice, bob *KeyContext) {
	t.Helper()
	ak, bk := mirroredKeys(t, seed, aliceFirst, bobFirst)
	alice, err := NewKeyContext(ak, testConfig(capacity))
	require.NoError(t, err)
	bob, err = NewKeyContext(bk, testConfig(capacity))
	require.NoError(t, err)
	return alice, bob
}

func sessionPair(t testing.TB, config interfaces.PacketFormatConfig, seed byte) (alice, bob *PeerSession) {
	t.Helper()
	alice, err := NewPeerSession(config)
	require.NoError(t, err)
	bob, err = NewPeerSession(config)
	require.NoError(t, err)

	ak, bk := mirroredKeys(t, seed, 1000, 5000)
	require.NoError(t, alice.Rekey(ak))
	require.NoError(t, bob.Rekey(bk))
	return alice, bob
}
