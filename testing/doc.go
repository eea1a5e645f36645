// Package testing provides a deterministic lossy datagram channel for
// exercising sequence number recovery under loss, duplication, and
// reordering without a network.
//
// # Usage
//
//	sim, err := testing.NewReorderSimulator(testing.SimulatorConfig{
//	    Seed:         1,
//	    DropRate:     0.05,
//	    ReorderDepth: 8,
//	})
//	for _, payload := range payloads {
//	    datagram, _, _ := sender.Seal(payload)
//	    for _, arrived := range sim.Send(datagram) {
//	        receiver.Open(arrived)
//	    }
//	}
//	for _, arrived := range sim.Flush() {
//	    receiver.Open(arrived)
//	}
//
// A datagram is held back behind at most ReorderDepth later sends. Runs with
// the same config and the same sends produce the same arrivals, so failures
// reproduce from the seed alone.
//
// The package name shadows the standard library's testing package; import it
// under an alias in test files.
package testing
