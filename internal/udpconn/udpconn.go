// Package udpconn is the thin, non-blocking UDP collaborator the
// Scheduler and Device Host/Control Point drive from the single loop
// thread: multicast send/receive with a bounded read so the loop never
// stalls waiting on the network.
package udpconn

import (
	"fmt"
	"net"
	"time"
)

// MulticastConn wraps a UDP socket joined to the SSDP multicast group.
// Reads never block past the supplied ReadTimeout; zero bytes back from
// ReadDatagram is a valid "nothing yet" outcome, not an error.
type MulticastConn struct {
	conn         *net.UDPConn
	multicastDst *net.UDPAddr

	// ReadTimeout bounds a single ReadDatagram call. Defaults to 0
	// (non-blocking poll) if unset; callers typically set this to a few
	// milliseconds so the loop still yields promptly.
	ReadTimeout time.Duration
}

// Listen opens a UDP socket bound to port (0 for an ephemeral port). It
// does not join the multicast group and has no default destination, so
// Send on it needs an explicit addr; ListenMulticast joins the group and
// makes it the default destination.
func Listen(port int) (*MulticastConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("udpconn: listen: %w", err)
	}
	return &MulticastConn{conn: conn}, nil
}

// ListenMulticast opens a socket that joins the multicast group at addr
// (e.g. "239.255.255.250:1900") so inbound M-SEARCH/NOTIFY traffic is
// received.
func ListenMulticast(addr string) (*MulticastConn, error) {
	groupAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("udpconn: resolve %s: %w", addr, err)
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, groupAddr)
	if err != nil {
		return nil, fmt.Errorf("udpconn: join multicast %s: %w", addr, err)
	}

	return &MulticastConn{conn: conn, multicastDst: groupAddr}, nil
}

// Send implements scheduler.UDPSink: it writes data to addr (a unicast
// peer address, or the multicast group address when addr is empty).
func (m *MulticastConn) Send(addr string, data []byte) (int, error) {
	dst := m.multicastDst
	if addr != "" {
		resolved, err := net.ResolveUDPAddr("udp4", addr)
		if err != nil {
			return 0, fmt.Errorf("udpconn: resolve destination %s: %w", addr, err)
		}
		dst = resolved
	}
	if dst == nil {
		return 0, fmt.Errorf("udpconn: no destination address")
	}
	return m.conn.WriteToUDP(data, dst)
}

// ReadDatagram attempts to read one pending datagram into buf, bounded by
// ReadTimeout. Returns (0, "", nil) if nothing arrived within the
// deadline; this is the normal "nothing yet" outcome, not an error.
func (m *MulticastConn) ReadDatagram(buf []byte) (n int, fromAddr string, err error) {
	deadline := time.Now().Add(m.ReadTimeout)
	if err := m.conn.SetReadDeadline(deadline); err != nil {
		return 0, "", err
	}

	n, raddr, err := m.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, "", nil
		}
		return 0, "", err
	}
	return n, raddr.String(), nil
}

// Close releases the underlying socket.
func (m *MulticastConn) Close() error {
	return m.conn.Close()
}

// LocalAddr returns the socket's bound local address.
func (m *MulticastConn) LocalAddr() string {
	return m.conn.LocalAddr().String()
}
