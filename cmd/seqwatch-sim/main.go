package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ogier/pflag"
	"github.com/opd-ai/seqwatch/crypto"
	"github.com/opd-ai/seqwatch/factory"
	"github.com/opd-ai/seqwatch/noise"
	"github.com/opd-ai/seqwatch/transport"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
)

// CLIConfig holds the command line options.
type CLIConfig struct {
	packets       int
	drop          float64
	duplicate     float64
	reorder       int
	seed          int
	rekeyAt       int
	watchListSize int
	suite         string
	useUDP        bool
	udpWait       time.Duration
	logLevel      string
}

// simResult counts what happened to the packets of one run.
type simResult struct {
	Sent         int
	Lost         int // dropped by the simulated channel
	Arrived      int
	Decoded      int
	Unique       int
	ByPrevious   int
	ByUnverified int
	Unmatched    int
	BadHMAC      int
	Other        int
	Suite        string
	Rekeys       int
}

// usageExample is a complete command line. Long flags take their value as
// --flag=value.
const usageExample = "-n 5000 -d 0.1 -r 64 --rekey-at=2500"

func parseCLIFlags(args []string) (*CLIConfig, error) {
	config := &CLIConfig{}
	fs := pflag.NewFlagSet("seqwatch-sim", pflag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	fs.IntVarP(&config.packets, "packets", "n", 1000, "number of packets to send")
	fs.Float64VarP(&config.drop, "drop", "d", 0.05, "probability a simulated datagram is lost")
	fs.Float64Var(&config.duplicate, "duplicate", 0.02, "probability a simulated datagram arrives twice")
	fs.IntVarP(&config.reorder, "reorder", "r", 16, "how many later datagrams one may fall behind")
	fs.IntVar(&config.seed, "seed", 1, "simulator seed")
	fs.IntVar(&config.rekeyAt, "rekey-at", 0, "rekey after this many packets (0 disables)")
	fs.IntVar(&config.watchListSize, "watchlist-size", 0, "sequence numbers watched per key (0 keeps the default)")
	fs.StringVar(&config.suite, "suite", crypto.DefaultCipherSuite.Name, "preferred cipher suite")
	fs.BoolVar(&config.useUDP, "udp", false, "send over loopback UDP instead of the simulator")
	fs.DurationVar(&config.udpWait, "udp-wait", 2*time.Second, "how long to wait for UDP stragglers")
	fs.StringVarP(&config.logLevel, "log-level", "l", "warn", "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config, nil
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage: "+os.Args[0]+" [OPTION]...")
	fmt.Fprintln(os.Stderr, "Flags:")
	fs.PrintDefaults()
	fmt.Fprintln(os.Stderr, "Example:")
	fmt.Fprintln(os.Stderr, "    "+os.Args[0]+" "+usageExample)
}

func validateCLIConfig(config *CLIConfig) error {
	if config.packets <= 0 {
		return errors.New("packets must be positive")
	}
	if config.drop < 0 || config.drop > 1 {
		return errors.New("drop must be between 0 and 1")
	}
	if config.duplicate < 0 || config.duplicate > 1 {
		return errors.New("duplicate must be between 0 and 1")
	}
	if config.reorder < 0 {
		return errors.New("reorder cannot be negative")
	}
	if config.rekeyAt < 0 || (config.rekeyAt != 0 && config.rekeyAt >= config.packets) {
		return fmt.Errorf("rekey-at must be between 1 and %d", config.packets-1)
	}
	if _, err := crypto.CipherSuiteByName(config.suite); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(config.logLevel); err != nil {
		return err
	}
	return nil
}

// preferring puts the named suite first, keeping the others as fallbacks.
func preferring(name string) []crypto.CipherSuite {
	suites := make([]crypto.CipherSuite, 0, len(crypto.SupportedCipherSuites))
	for _, s := range crypto.SupportedCipherSuites {
		if s.Name == name {
			suites = append([]crypto.CipherSuite{s}, suites...)
		} else {
			suites = append(suites, s)
		}
	}
	return suites
}

// handshake runs a Noise IK handshake between two fresh identities and
// returns both ends of the derived session key.
func handshake(suites []crypto.CipherSuite) (alice, bob *crypto.SessionKey, err error) {
	alicePriv, _, err := noise.GenerateStaticKey()
	if err != nil {
		return nil, nil, err
	}
	bobPriv, bobPub, err := noise.GenerateStaticKey()
	if err != nil {
		return nil, nil, err
	}

	initiator, err := noise.NewIKHandshake(alicePriv, bobPub, noise.Initiator, suites)
	if err != nil {
		return nil, nil, err
	}
	responder, err := noise.NewIKHandshake(bobPriv, nil, noise.Responder, suites)
	if err != nil {
		return nil, nil, err
	}

	msg1, _, err := initiator.WriteMessage(nil)
	if err != nil {
		return nil, nil, err
	}
	msg2, _, err := responder.WriteMessage(msg1)
	if err != nil {
		return nil, nil, err
	}
	if _, err := initiator.ReadMessage(msg2); err != nil {
		return nil, nil, err
	}

	if alice, err = initiator.SessionKey(); err != nil {
		return nil, nil, err
	}
	if bob, err = responder.SessionKey(); err != nil {
		return nil, nil, err
	}
	return alice, bob, nil
}

// peers holds both ends of a simulated connection.
type peers struct {
	suites       []crypto.CipherSuite
	alice, bob   *transport.PeerSession
	rekeyPending bool
}

func newPeers(f *factory.WatchListFactory, suites []crypto.CipherSuite) (*peers, error) {
	aliceKey, bobKey, err := handshake(suites)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	alice, err := f.CreatePeerSession(aliceKey)
	if err != nil {
		return nil, err
	}
	bob, err := f.CreatePeerSession(bobKey)
	if err != nil {
		return nil, err
	}
	p := &peers{suites: suites, alice: alice, bob: bob}
	alice.SetRekeyHandler(func() { p.rekeyPending = true })
	return p, nil
}

// rekey negotiates a new key; alice switches at once and bob follows when
// the first packet under it arrives.
func (p *peers) rekey() error {
	aliceKey, bobKey, err := handshake(p.suites)
	if err != nil {
		return fmt.Errorf("rekey handshake: %w", err)
	}
	if err := p.alice.Rekey(aliceKey); err != nil {
		return err
	}
	if err := p.bob.Rekey(bobKey); err != nil {
		return err
	}
	if err := p.alice.Promote(); err != nil {
		return err
	}
	p.rekeyPending = false
	return nil
}

// maybeRekey rekeys before packet i when the sender asked for it or the
// command line scheduled it there.
func (p *peers) maybeRekey(i int, config *CLIConfig, result *simResult) error {
	scheduled := config.rekeyAt > 0 && i == config.rekeyAt
	if !scheduled && !p.rekeyPending {
		return nil
	}
	if err := p.rekey(); err != nil {
		return err
	}
	result.Rekeys++
	return nil
}

func (r *simResult) record(pkt transport.Received, err error, seen map[string]bool) {
	switch {
	case err == nil:
		r.Decoded++
		switch pkt.Slot {
		case transport.SlotPrevious:
			r.ByPrevious++
		case transport.SlotUnverified:
			r.ByUnverified++
		}
		if !seen[string(pkt.Payload)] {
			seen[string(pkt.Payload)] = true
			r.Unique++
		}
	case errors.Is(err, transport.ErrNoMatch):
		r.Unmatched++
	case errors.Is(err, transport.ErrBadHMAC):
		r.BadHMAC++
	default:
		r.Other++
	}
}

func run(ctx context.Context, config *CLIConfig) (*simResult, error) {
	f := factory.NewWatchListFactory()
	if config.watchListSize > 0 {
		updated := f.GetCurrentConfig()
		updated.WatchList.Capacity = config.watchListSize
		if err := f.UpdateDefaultConfig(&updated); err != nil {
			return nil, err
		}
	}

	p, err := newPeers(f, preferring(config.suite))
	if err != nil {
		return nil, err
	}
	defer p.alice.Close()
	defer p.bob.Close()

	result := &simResult{Suite: p.alice.Current().Key().Suite.Name}
	if config.useUDP {
		err = runUDP(ctx, config, p, result)
	} else {
		err = runSimulated(f, config, p, result)
	}
	return result, err
}

func runSimulated(f *factory.WatchListFactory, config *CLIConfig, p *peers, result *simResult) error {
	sim, err := f.CreateSimulator(int64(config.seed),
		factory.WithDropRate(config.drop),
		factory.WithDuplicateRate(config.duplicate),
		factory.WithReorderDepth(config.reorder))
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	deliver := func(datagrams [][]byte) {
		result.Arrived += len(datagrams)
		for _, d := range datagrams {
			pkt, err := p.bob.Open(d)
			result.record(pkt, err, seen)
		}
	}

	for i := 0; i < config.packets; i++ {
		if err := p.maybeRekey(i, config, result); err != nil {
			return err
		}
		datagram, _, err := p.alice.Seal([]byte(strconv.Itoa(i)))
		if err != nil {
			return err
		}
		result.Sent++
		deliver(sim.Send(datagram))
	}
	deliver(sim.Flush())

	result.Lost = sim.Stats().Dropped
	return nil
}

func runUDP(ctx context.Context, config *CLIConfig, p *peers, result *simResult) error {
	connA, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	connB, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		connA.Close()
		return err
	}

	sender := transport.NewPacketConn(ctx, connA, connB.LocalAddr(), p.alice)
	defer sender.Close()
	receiver := transport.NewPacketConn(ctx, connB, connA.LocalAddr(), p.bob)
	defer receiver.Close()

	var mu sync.Mutex
	seen := make(map[string]bool)
	receiver.SetHandler(func(pkt transport.Received) {
		mu.Lock()
		defer mu.Unlock()
		result.record(pkt, nil, seen)
	})

	for i := 0; i < config.packets; i++ {
		if err := p.maybeRekey(i, config, result); err != nil {
			return err
		}
		if _, err := sender.Send(ctx, []byte(strconv.Itoa(i))); err != nil {
			return err
		}
		result.Sent++
	}

	deadline := time.Now().Add(config.udpWait)
	for time.Now().Before(deadline) && receiver.Stats().Received < uint64(result.Sent) {
		time.Sleep(10 * time.Millisecond)
	}

	stats := receiver.Stats()
	mu.Lock()
	defer mu.Unlock()
	result.Arrived = int(stats.Received)
	result.Unmatched = int(stats.Unmatched)
	result.BadHMAC = int(stats.BadHMAC)
	result.Other = int(stats.Malformed + stats.WrongPeer)
	result.Lost = result.Sent - result.Arrived
	return nil
}

func renderResult(result *simResult) error {
	data := pterm.TableData{
		{"Metric", "Count"},
		{"Cipher suite", result.Suite},
		{"Rekeys", strconv.Itoa(result.Rekeys)},
		{"Sent", strconv.Itoa(result.Sent)},
		{"Lost in transit", strconv.Itoa(result.Lost)},
		{"Arrived", strconv.Itoa(result.Arrived)},
		{"Decoded", strconv.Itoa(result.Decoded)},
		{"Unique payloads", strconv.Itoa(result.Unique)},
		{"Decoded by previous key", strconv.Itoa(result.ByPrevious)},
		{"Decoded by unverified key", strconv.Itoa(result.ByUnverified)},
		{"Outside watch list", strconv.Itoa(result.Unmatched)},
		{"Failed authentication", strconv.Itoa(result.BadHMAC)},
		{"Other drops", strconv.Itoa(result.Other)},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func main() {
	config, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if err := validateCLIConfig(config); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(2)
	}

	level, _ := logrus.ParseLevel(config.logLevel)
	logrus.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := run(ctx, config)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	if err := renderResult(result); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}
