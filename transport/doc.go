// Package transport carries payloads between two peers in datagrams whose
// sequence numbers are never visible on the wire.
//
// Every datagram is laid out as
//
//	HMAC[10] || E(seq[4] || payload)
//
// where E is the sender's CFB stream under an IV derived from seq. The
// receiver recovers seq by looking the four bytes after the HMAC up in the
// watch list of the key (see package watchlist), then decrypts with the
// matching IV.
//
// # Keys
//
// A KeyContext holds the state of one session key: outgoing sequence
// allocation and the incoming watch list. AllocateSeq refuses to reuse a
// number; RekeyNeeded turns true when fewer than the configured threshold
// remain.
//
// A PeerSession groups the key contexts of one peer:
//
//	current     sends, and receives
//	previous    receives stragglers sent before the last promotion
//	unverified  receives; promoted to current on its first packet
//
//	sess, _ := transport.NewPeerSession(config)
//	_ = sess.Rekey(sessionKey)
//	datagram, seq, err := sess.Seal(payload)
//	pkt, err := sess.Open(datagram)
//
// SetRekeyHandler is called from Seal once the current key runs low on
// sequence numbers or outlives the SetRotationPolicy age limit. Keys a
// session discards are wiped.
//
// # Datagram endpoint
//
// PacketConn binds a PeerSession to a net.PacketConn. Its read loop uses a
// 100ms read deadline so that context cancellation is noticed promptly, and
// delivers decoded packets to a Handler in arrival order. Datagrams that do
// not decode are counted in Stats and dropped.
package transport
