// Package transport provides the UDP and TCP socket plumbing the server
// loop and forwarder send and receive raw DNS messages over: buffer
// pooling for the receive hot path, SO_REUSEPORT-aware listener creation,
// and a length-prefixed TCP framing layer (RFC 1035 §4.2.2).
package transport

import (
	"context"
	"net"
)

// Transport abstracts a single logical socket used to exchange raw DNS
// messages. The server loop uses one for receiving queries and sending
// responses; the forwarder uses one per upstream connection.
type Transport interface {
	Send(ctx context.Context, packet []byte, dest net.Addr) error
	Receive(ctx context.Context) ([]byte, net.Addr, error)
	Close() error
}
