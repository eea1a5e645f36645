package noise

import (
	"testing"
)

// FuzzHandshakeMessage feeds arbitrary bytes to both handshake steps that
// consume peer input. None of them may panic.
func FuzzHandshakeMessage(f *testing.F) {
	alice, bob := newPeerKeys(f), newPeerKeys(f)

	init, err := NewIKHandshake(alice.private, bob.public, Initiator, nil)
	if err != nil {
		f.Fatal(err)
	}
	msg1, _, err := init.WriteMessage(nil)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(msg1)
	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add(make([]byte, 1024))

	f.Fuzz(func(t *testing.T, data []byte) {
		resp, err := NewIKHandshake(bob.private, nil, Responder, nil)
		if err != nil {
			t.Fatal(err)
		}
		_, _, _ = resp.WriteMessage(data)

		fresh, err := NewIKHandshake(alice.private, bob.public, Initiator, nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, _, err := fresh.WriteMessage(nil); err != nil {
			t.Fatal(err)
		}
		if done, err := fresh.ReadMessage(data); err == nil && done {
			if _, err := fresh.SessionKey(); err != nil {
				t.Fatalf("completed handshake without a session key: %v", err)
			}
		}
	})
}
