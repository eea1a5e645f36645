// Package noise establishes packet session keys between two peers using the
// Noise IK pattern from the flynn/noise library (Curve25519, ChaCha20-Poly1305,
// SHA256).
//
// The initiator must already know the responder's static public key. The
// handshake payloads negotiate the block cipher suite used for packet
// encryption:
//
//	Initiator                              Responder
//	─────────                              ─────────
//	-> e, es, s, ss  [offered suites]
//	                                       <- e, ee, se  [selected suite]
//	[session established]
//
// Once complete, both sides export a shared secret from the transport cipher
// states and expand it with crypto.DeriveSessionKey. The resulting keys are
// mirrored: the initiator's outgoing key is the responder's incoming key.
//
// Example usage:
//
//	init, _ := noise.NewIKHandshake(myPriv, peerPub, noise.Initiator, nil)
//	msg1, _, _ := init.WriteMessage(nil)
//	// send msg1, receive msg2
//	if _, err := init.ReadMessage(msg2); err != nil {
//	    return err
//	}
//	sk, err := init.SessionKey()
//
//	resp, _ := noise.NewIKHandshake(peerPriv, nil, noise.Responder, nil)
//	msg2, _, err := resp.WriteMessage(msg1)
//	sk, err := resp.SessionKey()
//
// After the handshake, verify the peer's identity with GetRemoteStaticKey.
//
// IKHandshake is not safe for concurrent use; the protocol is sequential.
package noise
