package dtlsbridge

import (
	"errors"
	"net"
	"time"
)

// pktConn is the net.Conn pion/dtls drives its handshake and application
// data over. Inbound UDP bytes are pushed in with feed(); bytes dtls.Conn
// writes out (handshake flights or protected application data) land on
// outbound for the bridge to drain as UDP sends (spec §4.4).
//
// pion/dtls exposes a connection-oriented, blocking API rather than a
// sans-io one; pktConn is the adapter that lets it run inside its own
// goroutine while the media port's cooperative loop only ever touches
// non-blocking channel operations (see Endpoint, and DESIGN.md).
type pktConn struct {
	local, remote net.Addr
	inbound       chan []byte
	outbound      chan []byte
	closed        chan struct{}
}

func newPktConn(local, remote net.Addr) *pktConn {
	return &pktConn{
		local:    local,
		remote:   remote,
		inbound:  make(chan []byte, 64),
		outbound: make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (c *pktConn) Read(b []byte) (int, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return 0, errors.New("dtlsbridge: conn closed")
		}
		n := copy(b, data)
		return n, nil
	case <-c.closed:
		return 0, errors.New("dtlsbridge: conn closed")
	}
}

func (c *pktConn) Write(b []byte) (int, error) {
	out := append([]byte(nil), b...)
	select {
	case c.outbound <- out:
		return len(b), nil
	case <-c.closed:
		return 0, errors.New("dtlsbridge: conn closed")
	}
}

func (c *pktConn) feed(b []byte) {
	cp := append([]byte(nil), b...)
	select {
	case c.inbound <- cp:
	default:
		// Inbound queue full: drop rather than block the caller, matching
		// the no-blocking-on-the-data-plane rule (spec §5).
	}
}

func (c *pktConn) drain() [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-c.outbound:
			out = append(out, b)
		default:
			return out
		}
	}
}

func (c *pktConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func (c *pktConn) LocalAddr() net.Addr  { return c.local }
func (c *pktConn) RemoteAddr() net.Addr { return c.remote }

func (c *pktConn) SetDeadline(t time.Time) error      { return nil }
func (c *pktConn) SetReadDeadline(t time.Time) error   { return nil }
func (c *pktConn) SetWriteDeadline(t time.Time) error  { return nil }
