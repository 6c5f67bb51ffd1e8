package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/mirelon/adnsd/internal/dnserrors"
)

// TCPListener accepts DNS-over-TCP connections and frames messages with
// the 2-byte big-endian length prefix RFC 1035 §4.2.2 requires.
type TCPListener struct {
	ln net.Listener
}

// NewTCPListener binds a TCP listener at addr, with the same
// SO_REUSEPORT-aware control used for the UDP listener.
func NewTCPListener(addr string) (*TCPListener, error) {
	lc := net.ListenConfig{Control: PlatformControl}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, &dnserrors.Network{Operation: "create TCP listener", Err: err, Details: fmt.Sprintf("bind %s", addr)}
	}
	return &TCPListener{ln: ln}, nil
}

// Accept blocks for the next incoming connection.
func (l *TCPListener) Accept() (*TCPConn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, &dnserrors.Network{Operation: "accept TCP connection", Err: err}
	}
	return &TCPConn{conn: conn}, nil
}

func (l *TCPListener) Close() error {
	if err := l.ln.Close(); err != nil {
		return &dnserrors.Network{Operation: "close TCP listener", Err: err}
	}
	return nil
}

// TCPConn wraps one accepted (or dialed) TCP connection with DNS message
// framing: each message is prefixed by its length as an unsigned 16-bit
// big-endian integer (RFC 1035 §4.2.2).
type TCPConn struct {
	conn net.Conn
}

// DialTCP opens a client connection to a DNS server over TCP, used by the
// forwarder to retry a query whose UDP response came back truncated.
func DialTCP(ctx context.Context, addr string) (*TCPConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &dnserrors.Network{Operation: "dial TCP", Err: err, Details: fmt.Sprintf("connect to %s", addr)}
	}
	return &TCPConn{conn: conn}, nil
}

// ReadMessage reads one length-prefixed DNS message, respecting ctx's
// deadline if any.
func (c *TCPConn) ReadMessage(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, &dnserrors.Network{Operation: "set read deadline", Err: err}
		}
	}

	var lengthPrefix [2]byte
	if _, err := io.ReadFull(c.conn, lengthPrefix[:]); err != nil {
		return nil, classifyReadError("read TCP length prefix", err)
	}

	length := binary.BigEndian.Uint16(lengthPrefix[:])
	buf := make([]byte, length)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, classifyReadError("read TCP message body", err)
	}
	return buf, nil
}

// WriteMessage writes one length-prefixed DNS message.
func (c *TCPConn) WriteMessage(ctx context.Context, msg []byte) error {
	if len(msg) > 0xFFFF {
		return &dnserrors.Malformed{Operation: "write TCP message", Offset: -1, Message: "message exceeds 65535 bytes"}
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return &dnserrors.Network{Operation: "set write deadline", Err: err}
		}
	}

	framed := make([]byte, 2+len(msg))
	binary.BigEndian.PutUint16(framed, uint16(len(msg)))
	copy(framed[2:], msg)

	if _, err := c.conn.Write(framed); err != nil {
		return &dnserrors.Network{Operation: "write TCP message", Err: err}
	}
	return nil
}

// RemoteAddr reports the peer address, for logging and rate limiting.
func (c *TCPConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// SetDeadline bounds the whole connection lifetime (idle timeout).
func (c *TCPConn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

func (c *TCPConn) Close() error {
	if err := c.conn.Close(); err != nil {
		return &dnserrors.Network{Operation: "close TCP connection", Err: err}
	}
	return nil
}

func classifyReadError(op string, err error) error {
	if err == io.EOF {
		return &dnserrors.Network{Operation: op, Err: err, Details: "connection closed"}
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return dnserrors.Timeout(op, err)
	}
	return &dnserrors.Network{Operation: op, Err: err}
}
