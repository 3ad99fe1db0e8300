// Package udpsocket wraps one UDP socket per media port (spec §6: "one
// UDP socket per media port"), surfacing the local IP and ECN markings
// pion/dtls's (now, peer_addr, local_ip, ecn) tuple needs (spec §4.4),
// via golang.org/x/net/ipv4's PacketConn the way the teacher's go.mod
// pulls in golang.org/x/net transitively.
package udpsocket

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// Socket is one bound media port's UDP listener.
type Socket struct {
	conn   *net.UDPConn
	pktsV4 *ipv4.PacketConn
	port   uint16
}

// Bind opens a UDP socket on 0.0.0.0:port and enables per-packet
// control-message reporting (local address + ECN/TOS) on it.
func Bind(port uint16) (*Socket, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, fmt.Errorf("udpsocket: listen :%d: %w", port, err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagDst|ipv4.FlagTOS, true); err != nil {
		conn.Close()
		return nil, fmt.Errorf("udpsocket: enable control messages: %w", err)
	}

	return &Socket{conn: conn, pktsV4: pc, port: port}, nil
}

// Port returns the bound port number.
func (s *Socket) Port() uint16 { return s.port }

// LocalAddr returns the bound local address.
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Packet is one received UDP datagram plus the ambient data the DTLS
// bridge's handle() tuple needs (spec §4.4).
type Packet struct {
	Data    []byte
	Peer    *net.UDPAddr
	LocalIP net.IP
	ECN     int // low two bits of the IP TOS/DSCP byte, per RFC 3168
}

// ReadFrom blocks for the next datagram (the media port's own goroutine
// owns this socket exclusively; spec §5 "each thread owns exclusive
// mutable state for its port").
func (s *Socket) ReadFrom(buf []byte) (*Packet, error) {
	n, cm, peer, err := s.pktsV4.ReadFrom(buf)
	if err != nil {
		return nil, err
	}
	p := &Packet{
		Data: append([]byte(nil), buf[:n]...),
		Peer: peer.(*net.UDPAddr),
	}
	if cm != nil {
		p.LocalIP = cm.Dst
		p.ECN = cm.TOS & 0x3
	}
	return p, nil
}

// WriteTo sends a datagram to peer.
func (s *Socket) WriteTo(data []byte, peer *net.UDPAddr) error {
	_, err := s.conn.WriteToUDP(data, peer)
	return err
}

// Close releases the socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}
