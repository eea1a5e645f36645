// Package interfaces defines the contracts and configuration shared between
// the watch list, the packet format, and their factory.
//
// # Core Interfaces
//
// [IKeyMaterial] is the view of a session key that token derivation needs:
// the IV blinding cipher, the IV nonce, and the stream cipher keying the
// packet body. crypto.DirectionalKey implements it.
//
// [IWatchList] is the per-peer sliding window of encrypted sequence number
// tokens. watchlist.Window implements it:
//
//	var wl interfaces.IWatchList = window
//	wl.EnsureInitialized(firstSeq, key)
//	wl.Advance(key)
//	if seq, ok := wl.PossibleMatch(datagram, limits.HMACLength, minSeq); ok {
//	    // try to authenticate and decrypt as seq
//	}
//
// # Configuration
//
// [WatchListConfig] and [PacketFormatConfig] are plain structs passed at
// construction. There is no package-level registry; the factory package
// builds them from defaults and environment overrides.
package interfaces
