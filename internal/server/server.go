// Package server runs the authoritative DNS server loop: bind the
// configured socket(s), decode each query, answer it from the zone store
// or the forwarder, and reply (spec.md §4.10).
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/mirelon/adnsd/internal/config"
	"github.com/mirelon/adnsd/internal/forwarder"
	"github.com/mirelon/adnsd/internal/message"
	"github.com/mirelon/adnsd/internal/protocol"
	"github.com/mirelon/adnsd/internal/security"
	"github.com/mirelon/adnsd/internal/transport"
	"github.com/mirelon/adnsd/internal/zone"
)

// defaultUDPPayload is the UDP response size ceiling absent EDNS0
// (spec.md §4.10, §6).
const defaultUDPPayload = 512

// Rate-limiting defaults: generous enough not to throttle a well-behaved
// resolver retrying under normal packet loss, tight enough to blunt a
// single flooding source. Tuned for an authoritative server fielding
// queries from many resolvers, not a multicast LAN.
const (
	rateLimitQPS        = 200
	rateLimitBurst      = 400
	rateLimitMaxSources = 50000
)

// Server is the running name-server loop: one receive goroutine per bound
// socket, one handler goroutine per UDP query or per accepted TCP
// connection (grounded on the teacher's
// Responder.runQueryHandler goroutine/select idiom in responder.go,
// generalized here from a single mDNS multicast socket to unicast
// UDP/TCP listeners, possibly both at once).
type Server struct {
	cfg     *config.Config
	store   *zone.Store
	forward *forwarder.Forwarder
	limiter *security.RateLimiter
	logger  *zap.Logger

	wg sync.WaitGroup
}

// New builds a Server. fwd may be nil, meaning forwarding is disabled and
// unresolved queries receive REFUSED (spec.md §6).
func New(cfg *config.Config, store *zone.Store, fwd *forwarder.Forwarder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		store:   store,
		forward: fwd,
		limiter: security.NewRateLimiter(rateLimitQPS, rateLimitBurst, rateLimitMaxSources),
		logger:  logger,
	}
}

// Run binds the socket(s) cfg.Protocol selects and serves until ctx is
// canceled, then waits for in-flight handlers to finish.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	if s.cfg.Protocol == config.ProtocolUDP || s.cfg.Protocol == config.ProtocolBoth {
		udpT, err := transport.NewUDPListener(addr)
		if err != nil {
			return err
		}
		closers = append(closers, udpT)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runUDPLoop(ctx, udpT)
		}()
	}

	if s.cfg.Protocol == config.ProtocolTCP || s.cfg.Protocol == config.ProtocolBoth {
		tcpL, err := transport.NewTCPListener(addr)
		if err != nil {
			closeAll()
			return err
		}
		closers = append(closers, tcpL)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runTCPLoop(ctx, tcpL)
		}()
	}

	<-ctx.Done()
	closeAll()
	s.wg.Wait()
	return nil
}

func (s *Server) runUDPLoop(ctx context.Context, t *transport.UDPTransport) {
	for {
		packet, addr, err := t.Receive(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.logger.Warn("udp receive failed", zap.Error(err))
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleUDPQuery(ctx, t, packet, addr)
		}()
	}
}

func (s *Server) handleUDPQuery(ctx context.Context, t *transport.UDPTransport, packet []byte, addr net.Addr) {
	if !s.limiter.Allow(hostOf(addr)) {
		return
	}

	query, decodeErr := message.Decode(packet)
	var resp *message.Message
	limit := defaultUDPPayload
	if decodeErr != nil {
		resp = s.formErrResponse(packet)
		if resp == nil {
			return
		}
	} else {
		resp = s.buildResponse(ctx, query)
		limit = udpPayloadLimit(query)
	}

	respBytes, err := encodeUDPResponse(resp, limit)
	if err != nil {
		s.logger.Warn("failed to encode UDP response", zap.Error(err))
		return
	}
	if err := t.Send(ctx, respBytes, addr); err != nil {
		s.logger.Warn("udp send failed", zap.Error(err))
	}
}

func (s *Server) runTCPLoop(ctx context.Context, l *transport.TCPListener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.logger.Warn("tcp accept failed", zap.Error(err))
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveTCPConn(ctx, conn)
		}()
	}
}

func (s *Server) serveTCPConn(ctx context.Context, conn *transport.TCPConn) {
	defer conn.Close()
	if !s.limiter.Allow(hostOf(conn.RemoteAddr())) {
		return
	}

	for {
		packet, err := conn.ReadMessage(ctx)
		if err != nil {
			return
		}

		query, decodeErr := message.Decode(packet)
		var resp *message.Message
		if decodeErr != nil {
			resp = s.formErrResponse(packet)
			if resp == nil {
				return
			}
		} else {
			resp = s.buildResponse(ctx, query)
		}

		respBytes, err := resp.Encode(true)
		if err != nil {
			s.logger.Warn("failed to encode TCP response", zap.Error(err))
			return
		}
		if err := conn.WriteMessage(ctx, respBytes); err != nil {
			s.logger.Warn("tcp write failed", zap.Error(err))
			return
		}
	}
}

// buildResponse answers a successfully decoded query, applying the RCODE
// policy table from spec.md §6.
func (s *Server) buildResponse(ctx context.Context, query *message.Message) *message.Message {
	resp := &message.Message{Header: newResponseHeader(query.Header), Questions: query.Questions}

	if query.Header.Opcode() != protocol.OpcodeQuery {
		resp.Header.SetRCode(protocol.RCodeNotImp)
		return resp
	}
	if len(query.Questions) != 1 {
		resp.Header.SetRCode(protocol.RCodeFormErr)
		return resp
	}

	q := query.Questions[0]
	result := s.store.Lookup(q.Class, q.Name, q.Type)

	switch {
	case result.ZoneFound && result.NameExists:
		resp.Header.SetAA(true)
		resp.Header.SetRCode(protocol.RCodeNoError)
		resp.Answers = result.Records
		if len(resp.Answers) == 0 && q.Type == protocol.TypeANY && s.cfg.Policy.SynthesizeHINFOOnANY {
			resp.Answers = []message.ResourceRecord{{
				Name: q.Name, Type: protocol.TypeHINFO, Class: q.Class,
				RData: message.SynthesizeHINFO(),
			}}
		}

	case result.ZoneFound:
		resp.Header.SetAA(true)
		resp.Header.SetRCode(protocol.RCodeNXDomain)

	case s.forward != nil:
		fwdResp, err := s.forward.Forward(ctx, query)
		if err != nil {
			s.logger.Warn("forward failed", zap.Error(err))
			resp.Header.SetRCode(protocol.RCodeServFail)
			return resp
		}
		return fwdResp

	default:
		resp.Header.SetRCode(protocol.RCodeRefused)
	}

	return resp
}

// formErrResponse builds the best response possible when a query fails to
// decode at all: just the echoed transaction ID and FormErr, per spec.md
// §7 ("copy the question section back" — there is none to copy here).
// Returns nil when even the 12-byte header couldn't be recovered, in
// which case the query is dropped rather than answered.
func (s *Server) formErrResponse(packet []byte) *message.Message {
	hdr, ok := message.PeekHeader(packet)
	if !ok {
		return nil
	}
	resp := &message.Message{Header: newResponseHeader(hdr)}
	resp.Header.SetRCode(protocol.RCodeFormErr)
	return resp
}

// newResponseHeader starts a response header from scratch, carrying over
// only the transaction ID, opcode, and RD bit from the query: every other
// flag (QR, AA, TC, RA, RCODE) is decided by the response, never inherited
// from untrusted query bytes.
func newResponseHeader(query message.Header) message.Header {
	var h message.Header
	h.ID = query.ID
	h.SetOpcode(query.Opcode())
	h.SetRD(query.RD())
	h.SetQR(true)
	return h
}

// udpPayloadLimit returns the response size ceiling for a UDP reply:
// the query's advertised EDNS0 UDP payload size if it's at least the
// default, else the RFC 1035 512-byte default.
func udpPayloadLimit(query *message.Message) int {
	edns, ok, err := query.EDNS0()
	if err != nil || !ok || edns.UDPPayloadSize < defaultUDPPayload {
		return defaultUDPPayload
	}
	return int(edns.UDPPayloadSize)
}

// encodeUDPResponse encodes resp, and if it doesn't fit within limit,
// re-encodes a truncated reply (TC set, every section but the question
// dropped) instead, per spec.md §4.10/§6.
func encodeUDPResponse(resp *message.Message, limit int) ([]byte, error) {
	b, err := resp.Encode(true)
	if err != nil {
		return nil, err
	}
	if len(b) <= limit {
		return b, nil
	}

	truncated := &message.Message{Header: resp.Header, Questions: resp.Questions}
	truncated.Header.SetTC(true)
	return truncated.Encode(true)
}

// hostOf strips the port from a network address for rate-limiting
// purposes, falling back to the full address string if it carries no port.
func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
