package sctpbridge

import (
	"errors"
	"net"
	"time"
)

// pipeConn adapts the decrypted DTLS application-data stream to the
// net.Conn pion/sctp's Config.NetConn expects: reads deliver bytes fed
// in from dtlsbridge, writes are queued for the caller to drain and hand
// back to dtlsbridge.WriteApplication (spec §4.5).
type pipeConn struct {
	read   chan []byte
	write  chan []byte
	closed chan struct{}
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		read:   make(chan []byte, 64),
		write:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *pipeConn) Read(b []byte) (int, error) {
	select {
	case data, ok := <-c.read:
		if !ok {
			return 0, errors.New("sctpbridge: conn closed")
		}
		return copy(b, data), nil
	case <-c.closed:
		return 0, errors.New("sctpbridge: conn closed")
	}
}

func (c *pipeConn) Write(b []byte) (int, error) {
	out := append([]byte(nil), b...)
	select {
	case c.write <- out:
		return len(b), nil
	case <-c.closed:
		return 0, errors.New("sctpbridge: conn closed")
	}
}

func (c *pipeConn) feedRead(b []byte) {
	cp := append([]byte(nil), b...)
	select {
	case c.read <- cp:
	default:
	}
}

func (c *pipeConn) drainWrite() [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-c.write:
			out = append(out, b)
		default:
			return out
		}
	}
}

func (c *pipeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func (c *pipeConn) LocalAddr() net.Addr                { return pipeAddr{} }
func (c *pipeConn) RemoteAddr() net.Addr               { return pipeAddr{} }
func (c *pipeConn) SetDeadline(t time.Time) error      { return nil }
func (c *pipeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *pipeConn) SetWriteDeadline(t time.Time) error { return nil }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }
