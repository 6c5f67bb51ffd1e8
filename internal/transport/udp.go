package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/mirelon/adnsd/internal/dnserrors"
)

// UDPTransport implements Transport over a single unicast UDP socket. The
// server loop binds one to the configured listen address; the forwarder
// binds one per outbound query (an unbound client socket, since it only
// ever talks to one upstream address at a time).
type UDPTransport struct {
	conn net.PacketConn
}

// NewUDPListener binds a UDP socket at addr (host:port) for server use.
// SO_REUSEPORT/SO_REUSEADDR are set via platformControl so several listener
// processes can share the port, the way a DNS server is commonly deployed
// behind a load balancer or alongside a health-check sidecar.
func NewUDPListener(addr string) (*UDPTransport, error) {
	lc := net.ListenConfig{Control: PlatformControl}
	conn, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return nil, &dnserrors.Network{Operation: "create UDP listener", Err: err, Details: fmt.Sprintf("bind %s", addr)}
	}
	return &UDPTransport{conn: conn}, nil
}

// NewUDPClient opens an unbound UDP socket for sending a single outbound
// query and receiving its reply, as the forwarder does against an upstream
// resolver.
func NewUDPClient() (*UDPTransport, error) {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, &dnserrors.Network{Operation: "create UDP client socket", Err: err}
	}
	return &UDPTransport{conn: conn}, nil
}

func (t *UDPTransport) Send(ctx context.Context, packet []byte, dest net.Addr) error {
	select {
	case <-ctx.Done():
		return &dnserrors.Network{Operation: "send", Err: ctx.Err(), Details: "context canceled before send"}
	default:
	}

	n, err := t.conn.WriteTo(packet, dest)
	if err != nil {
		return &dnserrors.Network{Operation: "send", Err: err, Details: fmt.Sprintf("writing %d bytes to %s", len(packet), dest)}
	}
	if n != len(packet) {
		return &dnserrors.Network{Operation: "send", Err: fmt.Errorf("partial write: %d/%d bytes", n, len(packet))}
	}
	return nil
}

func (t *UDPTransport) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	select {
	case <-ctx.Done():
		return nil, nil, &dnserrors.Network{Operation: "receive", Err: ctx.Err(), Details: "context canceled before receive"}
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return nil, nil, &dnserrors.Network{Operation: "set read deadline", Err: err}
		}
	}

	bufPtr := GetBuffer()
	defer PutBuffer(bufPtr)
	buffer := *bufPtr

	n, srcAddr, err := t.conn.ReadFrom(buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, dnserrors.Timeout("receive", err)
		}
		return nil, nil, &dnserrors.Network{Operation: "receive", Err: err}
	}

	result := make([]byte, n)
	copy(result, buffer[:n])
	return result, srcAddr, nil
}

func (t *UDPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	if err := t.conn.Close(); err != nil {
		return &dnserrors.Network{Operation: "close UDP socket", Err: err}
	}
	return nil
}

// LocalAddr reports the socket's bound address, including the port the OS
// picked when the socket was bound to port 0.
func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }
