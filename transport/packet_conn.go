package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/seqwatch/limits"
	"github.com/opd-ai/seqwatch/seqnum"
	"github.com/sirupsen/logrus"
)

// readTimeout bounds each blocking read so the loop notices cancellation.
const readTimeout = 100 * time.Millisecond

// Handler receives each packet decoded by a PacketConn.
type Handler func(pkt Received)

// Stats counts datagrams seen by a PacketConn.
type Stats struct {
	Sent      uint64
	Received  uint64
	Delivered uint64
	Unmatched uint64
	BadHMAC   uint64
	Malformed uint64
	WrongPeer uint64
}

// PacketConn exchanges sealed packets with one peer over a net.PacketConn.
// Decoded packets are passed to the handler in arrival order from a single
// read goroutine.
type PacketConn struct {
	conn    net.PacketConn
	peer    net.Addr
	session *PeerSession

	mu      sync.RWMutex
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	sent, received, delivered                atomic.Uint64
	unmatched, badHMAC, malformed, wrongPeer atomic.Uint64
}

// Listen opens a UDP socket on listenAddr and wraps it with NewPacketConn.
func Listen(ctx context.Context, listenAddr string, peer net.Addr, session *PeerSession) (*PacketConn, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}
	return NewPacketConn(ctx, conn, peer, session), nil
}

// NewPacketConn starts reading from conn. Datagrams from addresses other
// than peer are dropped. The read loop stops when ctx is cancelled or
// Close is called; the PacketConn owns conn from here on.
func NewPacketConn(ctx context.Context, conn net.PacketConn, peer net.Addr, session *PeerSession) *PacketConn {
	ctx, cancel := context.WithCancel(ctx)

	c := &PacketConn{
		conn:    conn,
		peer:    peer,
		session: session,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go c.processPackets()

	return c
}

// SetHandler sets the function decoded packets are delivered to.
func (c *PacketConn) SetHandler(handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// SetPeer changes the only address packets are accepted from and sent to.
func (c *PacketConn) SetPeer(peer net.Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peer = peer
}

// Peer returns the remote address.
func (c *PacketConn) Peer() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peer
}

// Send seals payload under the session's current key and writes it to the
// peer. A deadline on ctx becomes the write deadline.
func (c *PacketConn) Send(ctx context.Context, payload []byte) (seqnum.Number, error) {
	select {
	case <-c.ctx.Done():
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	packet, seq, err := c.session.Seal(payload)
	if err != nil {
		return 0, err
	}

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)

	if _, err := c.conn.WriteTo(packet, c.Peer()); err != nil {
		return 0, err
	}
	c.sent.Add(1)
	return seq, nil
}

// Close stops the read loop and closes the socket.
func (c *PacketConn) Close() error {
	c.cancel()
	err := c.conn.Close()
	<-c.done
	return err
}

// Done is closed when the read loop has exited.
func (c *PacketConn) Done() <-chan struct{} {
	return c.done
}

// LocalAddr returns the local address of the socket.
func (c *PacketConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Stats returns a snapshot of the datagram counters.
func (c *PacketConn) Stats() Stats {
	return Stats{
		Sent:      c.sent.Load(),
		Received:  c.received.Load(),
		Delivered: c.delivered.Load(),
		Unmatched: c.unmatched.Load(),
		BadHMAC:   c.badHMAC.Load(),
		Malformed: c.malformed.Load(),
		WrongPeer: c.wrongPeer.Load(),
	}
}

func (c *PacketConn) processPackets() {
	defer close(c.done)
	buffer := make([]byte, 2*limits.MaxPacketSize)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		data, addr, err := c.readPacketData(buffer)
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		c.handleDatagram(data, addr)
	}
}

// readPacketData reads one datagram with a short deadline so cancellation
// is noticed between reads.
func (c *PacketConn) readPacketData(buffer []byte) ([]byte, net.Addr, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

	n, addr, err := c.conn.ReadFrom(buffer)
	if err != nil {
		var netErr net.Error
		if !(errors.As(err, &netErr) && netErr.Timeout()) && !errors.Is(err, net.ErrClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "PacketConn.readPacketData",
				"error":    err.Error(),
			}).Warn("Read failed")
		}
		return nil, nil, err
	}
	return buffer[:n], addr, nil
}

func (c *PacketConn) handleDatagram(data []byte, addr net.Addr) {
	c.received.Add(1)

	c.mu.RLock()
	peer, handler := c.peer, c.handler
	c.mu.RUnlock()

	if peer != nil && addr.String() != peer.String() {
		c.wrongPeer.Add(1)
		return
	}

	pkt, err := c.session.Open(data)
	if err != nil {
		c.countDrop(err)
		logrus.WithFields(logrus.Fields{
			"function": "PacketConn.handleDatagram",
			"from":     addr.String(),
			"size":     len(data),
			"error":    err.Error(),
		}).Debug("Dropped datagram")
		return
	}

	c.delivered.Add(1)
	if handler != nil {
		handler(pkt)
	}
}

func (c *PacketConn) countDrop(err error) {
	switch {
	case errors.Is(err, ErrNoMatch):
		c.unmatched.Add(1)
	case errors.Is(err, ErrBadHMAC):
		c.badHMAC.Add(1)
	default:
		c.malformed.Add(1)
	}
}
