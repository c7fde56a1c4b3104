// Package probesock manages the unprivileged ICMP datagram socket
// each diagnostic operation owns for its lifetime: acquisition,
// interface/source-address binding, per-probe TTL, and deadline-bound
// receive draining. No socket is ever shared across operations.
package probesock

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/Network-Weather/swiftftr/internal/errs"
)

// Options configure how a Session binds its socket.
type Options struct {
	// Interface, if non-empty, restricts outbound probes to this
	// network interface (by name, resolved to an index).
	Interface string
	// SourceIPv4, if non-nil, binds the socket's local address.
	SourceIPv4 net.IP
}

// A Session is one unprivileged ICMP datagram socket, owned
// exclusively by the operation that opened it.
type Session struct {
	conn *icmp.PacketConn
	ipv4 *ipv4.PacketConn
	ifi  *net.Interface
}

// Open acquires an unprivileged ICMP datagram socket ("udp4" network,
// per the platform's ping_group_range / unprivileged-ICMP facility)
// and applies the requested interface and/or source-address binding.
func Open(opts Options) (*Session, error) {
	addr := "0.0.0.0"
	if opts.SourceIPv4 != nil {
		v4 := opts.SourceIPv4.To4()
		if v4 == nil {
			return nil, &errs.SourceIPBindFailedError{IP: opts.SourceIPv4.String(), Details: "not an IPv4 address"}
		}
		addr = v4.String()
	}

	conn, err := icmp.ListenPacket("udp4", addr)
	if err != nil {
		if opts.SourceIPv4 != nil {
			return nil, &errs.SourceIPBindFailedError{IP: opts.SourceIPv4.String(), Errno: err}
		}
		return nil, &errs.SocketCreateFailedError{Errno: err, Context: "icmp.ListenPacket udp4"}
	}

	s := &Session{conn: conn, ipv4: conn.IPv4PacketConn()}

	if opts.Interface != "" {
		ifi, err := net.InterfaceByName(opts.Interface)
		if err != nil {
			conn.Close()
			return nil, &errs.InterfaceBindFailedError{Name: opts.Interface, Errno: err}
		}
		if ifi.Flags&net.FlagUp == 0 {
			conn.Close()
			return nil, &errs.InterfaceBindFailedError{Name: opts.Interface, Details: "interface is down"}
		}
		if err := s.bindToInterface(ifi); err != nil {
			conn.Close()
			return nil, &errs.InterfaceBindFailedError{Name: opts.Interface, Errno: err}
		}
		s.ifi = ifi
	}

	if s.ipv4 != nil {
		_ = s.ipv4.SetControlMessage(ipv4.FlagTTL|ipv4.FlagSrc|ipv4.FlagDst|ipv4.FlagInterface, true)
	}

	return s, nil
}

// bindToInterface applies SO_BINDTODEVICE so outbound probes always
// leave via ifi, regardless of routing table state.
func (s *Session) bindToInterface(ifi *net.Interface) error {
	sc, err := s.conn.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	err = sc.Control(func(fd uintptr) {
		opErr = unix.BindToDevice(int(fd), ifi.Name)
	})
	if err != nil {
		return err
	}
	return opErr
}

// SetTTL sets the outgoing IPv4 TTL used by subsequent sends.
func (s *Session) SetTTL(ttl int) error {
	if s.ipv4 == nil {
		return &errs.SetOptFailedError{Option: "ttl", Details: "no IPv4 packet conn"}
	}
	if err := s.ipv4.SetTTL(ttl); err != nil {
		return &errs.SetOptFailedError{Option: "ttl", Errno: err}
	}
	return nil
}

// Interface returns the bound outbound interface, if any.
func (s *Session) Interface() *net.Interface { return s.ifi }

// Send writes b to dst, retrying on a transient would-block error.
func (s *Session) Send(b []byte, dst net.IP) error {
	addr := &net.UDPAddr{IP: dst}
	var cm *ipv4.ControlMessage
	if s.ifi != nil {
		cm = &ipv4.ControlMessage{IfIndex: s.ifi.Index}
	}
	for attempts := 0; attempts < 3; attempts++ {
		var err error
		if s.ipv4 != nil {
			_, err = s.ipv4.WriteTo(b, cm, addr)
		} else {
			_, err = s.conn.WriteTo(b, addr)
		}
		if err == nil {
			return nil
		}
		if ne, ok := err.(net.Error); ok && ne.Temporary() {
			continue
		}
		return &errs.SendFailedError{Errno: err}
	}
	return &errs.SendFailedError{Errno: fmt.Errorf("exhausted retries on would-block")}
}

// Datagram is one received ICMP payload and its source address.
type Datagram struct {
	Payload []byte
	Src     net.IP
}

// Drain waits up to timeout for the socket to become readable, then
// reads every datagram that is immediately available (a would-block /
// deadline-exceeded result ends the drain), invoking fn for each. It
// returns the number of datagrams delivered to fn.
//
// This uses net.PacketConn's portable deadline mechanism rather than a
// raw non-blocking fd plus poll(2): SetReadDeadline already gives a
// bounded wait for readiness, and a zero-ish deadline on the
// subsequent reads gives the same "drain what's ready, then return to
// waiting" behavior without platform-specific syscalls.
func (s *Session) Drain(timeout time.Duration, fn func(Datagram)) (int, error) {
	buf := make([]byte, 2048)
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n, peer, err := s.conn.ReadFrom(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		return 0, err
	}
	delivered := 0
	fn(Datagram{Payload: append([]byte(nil), buf[:n]...), Src: srcIP(peer)})
	delivered++

	// Keep draining anything already queued, without blocking further.
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			return delivered, nil
		}
		n, peer, err := s.conn.ReadFrom(buf)
		if err != nil {
			return delivered, nil
		}
		fn(Datagram{Payload: append([]byte(nil), buf[:n]...), Src: srcIP(peer)})
		delivered++
	}
}

func srcIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.IPAddr:
		return a.IP
	default:
		return nil
	}
}

// Close releases the socket. Safe to call exactly once.
func (s *Session) Close() error {
	return s.conn.Close()
}
