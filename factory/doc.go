// Package factory builds watch lists, peer sessions, and reorder simulators
// from one shared default configuration.
//
// # Configuration
//
// Defaults come from the limits package and may be overridden through the
// environment:
//   - SEQWATCH_WATCHLIST_SIZE: number of sequence numbers watched per key
//   - SEQWATCH_TOLERANCE_BITS: comparator tolerance, 2 to 32
//   - SEQWATCH_REKEY_THRESHOLD: sequence numbers left when a rekey is requested
//   - SEQWATCH_KEEP_PREVIOUS_KEY: "true" or "false"
//
// Values that fail to parse or fall outside their bounds are logged and the
// default is kept.
//
// # Usage
//
//	f := factory.NewWatchListFactory()
//	session, err := f.CreatePeerSession(sessionKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// lossy in-memory channel for tests
//	sim, err := f.CreateSimulator(1, factory.WithDropRate(0.05))
package factory
