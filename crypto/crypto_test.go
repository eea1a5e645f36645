package crypto

import (
	"bytes"
	"crypto/cipher"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMaterial(suite CipherSuite) SessionKeyMaterial {
	fill := func(n int, b byte) []byte {
		return bytes.Repeat([]byte{b}, n)
	}
	return SessionKeyMaterial{
		IncomingKey:     fill(suite.KeySize, 0x11),
		OutgoingKey:     fill(suite.KeySize, 0x22),
		IVKey:           fill(suite.KeySize, 0x33),
		IVNonce:         fill(suite.BlockSize(), 0x44),
		IncomingHMACKey: fill(32, 0x55),
		OutgoingHMACKey: fill(32, 0x66),
		OurFirstSeq:     10,
		TheirFirstSeq:   20,
		TrackerID:       0xabcdef,
	}
}

func TestNewSessionKeyAllSuites(t *testing.T) {
	for _, suite := range SupportedCipherSuites {
		t.Run(suite.Name, func(t *testing.T) {
			sk, err := NewSessionKey(suite, testMaterial(suite))
			require.NoError(t, err)

			assert.Equal(t, suite.Name, sk.Suite.Name)
			assert.Equal(t, uint32(10), sk.OurFirstSeq)
			assert.Equal(t, uint32(20), sk.TheirFirstSeq)
			assert.Equal(t, 16, sk.Incoming().StreamCipher().BlockSize())
			assert.Same(t, sk.Incoming().IVCipher(), sk.Outgoing().IVCipher())
			assert.Equal(t, sk.Incoming().IVNonce(), sk.Outgoing().IVNonce())
			assert.NotEqual(t, sk.Incoming().HMACKey(), sk.Outgoing().HMACKey())
		})
	}
}

func TestNewSessionKeyRejectsBadMaterial(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *SessionKeyMaterial)
	}{
		{"short incoming key", func(m *SessionKeyMaterial) { m.IncomingKey = m.IncomingKey[:5] }},
		{"short outgoing key", func(m *SessionKeyMaterial) { m.OutgoingKey = nil }},
		{"short IV key", func(m *SessionKeyMaterial) { m.IVKey = m.IVKey[:16] }},
		{"short nonce", func(m *SessionKeyMaterial) { m.IVNonce = m.IVNonce[:8] }},
		{"empty hmac key", func(m *SessionKeyMaterial) { m.IncomingHMACKey = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMaterial(AES256Suite)
			tt.mutate(&m)
			_, err := NewSessionKey(AES256Suite, m)
			assert.True(t, errors.Is(err, ErrInvalidKeyLength), "got %v", err)
		})
	}
}

func TestNewSessionKeyCopiesInput(t *testing.T) {
	m := testMaterial(AES128Suite)
	sk, err := NewSessionKey(AES128Suite, m)
	require.NoError(t, err)

	ZeroBytes(m.IVNonce)
	ZeroBytes(m.IncomingHMACKey)
	assert.Equal(t, bytes.Repeat([]byte{0x44}, 16), sk.Incoming().IVNonce())
	assert.Equal(t, bytes.Repeat([]byte{0x55}, 32), sk.Incoming().HMACKey())
}

func TestSessionKeyWipe(t *testing.T) {
	sk, err := NewSessionKey(AES256Suite, testMaterial(AES256Suite))
	require.NoError(t, err)

	sk.Wipe()
	assert.Equal(t, make([]byte, 32), sk.Outgoing().HMACKey())
	assert.Equal(t, make([]byte, 16), sk.Incoming().IVNonce())

	var nilKey *SessionKey
	assert.NotPanics(t, func() { nilKey.Wipe() })
}

func TestDeriveSessionKeyMirrorsPeers(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	for _, suite := range SupportedCipherSuites {
		t.Run(suite.Name, func(t *testing.T) {
			alice, err := DeriveSessionKey(secret, []byte("salt"), suite, true)
			require.NoError(t, err)
			bob, err := DeriveSessionKey(secret, []byte("salt"), suite, false)
			require.NoError(t, err)

			assert.Equal(t, alice.TrackerID, bob.TrackerID)
			assert.Equal(t, alice.OurFirstSeq, bob.TheirFirstSeq)
			assert.Equal(t, alice.TheirFirstSeq, bob.OurFirstSeq)
			assert.Equal(t, alice.Outgoing().HMACKey(), bob.Incoming().HMACKey())
			assert.Equal(t, alice.Incoming().HMACKey(), bob.Outgoing().HMACKey())

			// alice's outgoing stream must decrypt with bob's incoming stream
			iv := make([]byte, 16)
			plain := []byte("hello, watch list")
			ct := make([]byte, len(plain))
			cipher.NewCFBEncrypter(alice.Outgoing().StreamCipher(), iv).XORKeyStream(ct, plain)
			out := make([]byte, len(ct))
			cipher.NewCFBDecrypter(bob.Incoming().StreamCipher(), iv).XORKeyStream(out, ct)
			assert.Equal(t, plain, out)
		})
	}
}

func TestDeriveSessionKeyDiffersBySecretAndSuite(t *testing.T) {
	a, err := DeriveSessionKey([]byte("secret-a"), nil, AES256Suite, true)
	require.NoError(t, err)
	b, err := DeriveSessionKey([]byte("secret-b"), nil, AES256Suite, true)
	require.NoError(t, err)
	c, err := DeriveSessionKey([]byte("secret-a"), nil, Twofish256Suite, true)
	require.NoError(t, err)

	assert.NotEqual(t, a.Incoming().IVNonce(), b.Incoming().IVNonce())
	assert.NotEqual(t, a.Incoming().IVNonce(), c.Incoming().IVNonce())
}

func TestDeriveSessionKeyEmptySecret(t *testing.T) {
	_, err := DeriveSessionKey(nil, nil, AES256Suite, true)
	assert.Error(t, err)
}

func TestCipherSuiteByName(t *testing.T) {
	suite, err := CipherSuiteByName("Twofish256")
	require.NoError(t, err)
	assert.Equal(t, 32, suite.KeySize)

	_, err = CipherSuiteByName("ROT13")
	assert.True(t, errors.Is(err, ErrUnknownCipherSuite))

	_, err = CipherSuite{Name: "bogus"}.NewBlock(make([]byte, 32))
	assert.True(t, errors.Is(err, ErrUnknownCipherSuite))
}

func TestCipherSuiteNegotiation(t *testing.T) {
	tests := []struct {
		name    string
		remote  []string
		want    string
		wantErr error
	}{
		{"prefers local order", []string{"AES128", "Twofish256", "AES256"}, "AES256", nil},
		{"skips unknown names", []string{"ChaCha20", "Twofish256"}, "Twofish256", nil},
		{"no overlap", []string{"ChaCha20"}, "", ErrNoCommonCipherSuite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewCipherSuiteNegotiator()
			n.SetRemoteCapabilities(tt.remote)
			suite, err := n.NegotiateCipherSuite()
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, suite.Name)
			assert.Equal(t, tt.want, n.SelectedSuite.Name)
		})
	}

	n := NewCipherSuiteNegotiator()
	_, err := n.NegotiateCipherSuite()
	assert.Error(t, err)
}

func TestCipherSuiteSerialization(t *testing.T) {
	data := SerializeCipherSuites(SupportedCipherSuites)
	assert.Equal(t, "AES256,Twofish256,AES128", string(data))
	assert.Equal(t, []string{"AES256", "Twofish256", "AES128"}, DeserializeCipherSuites(data))
	assert.Nil(t, DeserializeCipherSuites(nil))
}

func TestKeyRotationPolicy(t *testing.T) {
	clock := NewMockTimeProvider(time.Unix(1000, 0))
	sk, err := NewSessionKeyWithTimeProvider(AES256Suite, testMaterial(AES256Suite), clock)
	require.NoError(t, err)

	policy := NewKeyRotationPolicyWithTimeProvider(clock)
	require.NoError(t, policy.SetRotationPeriod(10*time.Minute))
	assert.Error(t, policy.SetRotationPeriod(time.Second))

	assert.False(t, policy.ShouldRotate(sk))
	clock.Advance(10 * time.Minute)
	assert.True(t, policy.ShouldRotate(sk))

	policy.SetEnabled(false)
	assert.False(t, policy.ShouldRotate(sk))
	assert.False(t, policy.GetConfig().Enabled)
	assert.False(t, policy.ShouldRotate(nil))
}

func TestDefaultTimeProvider(t *testing.T) {
	clock := NewMockTimeProvider(time.Unix(5000, 0))
	SetDefaultTimeProvider(clock)
	t.Cleanup(func() { SetDefaultTimeProvider(nil) })
	assert.Equal(t, clock, GetDefaultTimeProvider())

	sk, err := NewSessionKey(AES256Suite, testMaterial(AES256Suite))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(5000, 0), sk.CreatedAt)

	policy := NewKeyRotationPolicy()
	assert.False(t, policy.ShouldRotate(sk))
	clock.Advance(2 * time.Hour)
	assert.True(t, policy.ShouldRotate(sk))

	SetDefaultTimeProvider(nil)
	assert.Equal(t, DefaultTimeProvider{}, GetDefaultTimeProvider())
}

func TestSecureWipe(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	require.NoError(t, SecureWipe(data))
	assert.Equal(t, []byte{0, 0, 0, 0}, data)
	assert.Error(t, SecureWipe(nil))
}

func TestSecureFieldHash(t *testing.T) {
	fields := SecureFieldHash([]byte{0xde, 0xad, 0xbe, 0xef, 0x01}, "key")
	assert.Equal(t, "deadbeef...", fields["key_preview"])
	assert.Equal(t, 5, fields["key_size"])

	fields = SecureFieldHash(nil, "key")
	assert.Equal(t, "nil", fields["key_preview"])
}

func TestLoggerHelperFields(t *testing.T) {
	l := NewLogger("TestFunction").WithField("peer", 7).WithError(errors.New("boom"), "Test", "op")
	assert.Equal(t, "TestFunction", l.fields["function"])
	assert.Equal(t, "crypto", l.fields["package"])
	assert.Equal(t, 7, l.fields["peer"])
	assert.Equal(t, "boom", l.fields["error"])
}
