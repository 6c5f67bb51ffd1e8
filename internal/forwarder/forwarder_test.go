package forwarder

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mirelon/adnsd/internal/message"
	"github.com/mirelon/adnsd/internal/protocol"
)

func testQuery(t *testing.T, id uint16) *message.Message {
	t.Helper()
	return &message.Message{
		Header:    message.Header{ID: id, QDCount: 1},
		Questions: []message.Question{{Name: message.ParseName("www.example.com."), Type: protocol.TypeA, Class: protocol.ClassIN}},
	}
}

func testResponse(t *testing.T, id uint16, truncated bool) []byte {
	t.Helper()
	rec, err := message.NewARecord(net.IPv4(192, 0, 2, 1))
	if err != nil {
		t.Fatalf("NewARecord: %v", err)
	}
	m := &message.Message{
		Header:    message.Header{ID: id, QDCount: 1, ANCount: 1},
		Questions: []message.Question{{Name: message.ParseName("www.example.com."), Type: protocol.TypeA, Class: protocol.ClassIN}},
		Answers:   []message.ResourceRecord{{Name: message.ParseName("www.example.com."), Type: protocol.TypeA, Class: protocol.ClassIN, TTL: 300, RData: rec}},
	}
	m.Header.SetQR(true)
	if truncated {
		m.Header.SetTC(true)
	}
	b, err := m.Encode(true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}

// fakeUpstreamUDP answers every UDP query it receives with resp (rewriting
// the transaction ID to match), until stopped. port 0 picks an ephemeral
// port; a non-zero port binds exactly that port, used to colocate a UDP
// and TCP fake on the same address the way a real resolver listens on
// both protocols on one port.
func fakeUpstreamUDP(t *testing.T, resp []byte, hits *int32, port int) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 512)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			atomic.AddInt32(hits, 1)
			out := make([]byte, len(resp))
			copy(out, resp)
			out[0], out[1] = buf[0], buf[1]
			_, _ = conn.WriteToUDP(out, addr)
		}
	}()
	return conn.LocalAddr().String()
}

func fakeUpstreamTCP(t *testing.T, resp []byte, port int) (string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				var prefix [2]byte
				if _, err := conn.Read(prefix[:]); err != nil {
					return
				}
				length := binary.BigEndian.Uint16(prefix[:])
				req := make([]byte, length)
				if _, err := conn.Read(req); err != nil {
					return
				}
				out := make([]byte, len(resp))
				copy(out, resp)
				out[0], out[1] = req[0], req[1]
				var outPrefix [2]byte
				binary.BigEndian.PutUint16(outPrefix[:], uint16(len(out)))
				conn.Write(outPrefix[:])
				conn.Write(out)
			}()
		}
	}()
	return ln.Addr().String(), func() { ln.Close(); wg.Wait() }
}

func TestForward_UDPRoundTrip(t *testing.T) {
	var hits int32
	upstream := fakeUpstreamUDP(t, testResponse(t, 0, false), &hits, 0)

	f := New(upstream, time.Second, nil)
	query := testQuery(t, 0x1234)

	resp, err := f.Forward(context.Background(), query)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if resp.Header.ID != 0x1234 {
		t.Errorf("response ID = %#x, want %#x", resp.Header.ID, 0x1234)
	}
	if len(resp.Answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(resp.Answers))
	}
}

// TestForward_TCPFallbackOnTruncation colocates a UDP fake (which always
// answers truncated) and a TCP fake (which answers in full) on the same
// port, the way a real resolver listens on both protocols at once, and
// checks that Forward follows up over TCP instead of returning the
// truncated UDP reply.
func TestForward_TCPFallbackOnTruncation(t *testing.T) {
	tcpAddr, cleanup := fakeUpstreamTCP(t, testResponse(t, 0, false), 0)
	defer cleanup()
	_, portStr, err := net.SplitHostPort(tcpAddr)
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := net.LookupPort("tcp", portStr)
	if err != nil {
		t.Fatalf("LookupPort: %v", err)
	}

	var hits int32
	fakeUpstreamUDP(t, testResponse(t, 0, true), &hits, port)

	f := New(tcpAddr, time.Second, nil)
	resp, err := f.Forward(context.Background(), testQuery(t, 7))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if resp.Header.TC() {
		t.Error("Forward should return the TCP reply, not the truncated UDP one")
	}
	if len(resp.Answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(resp.Answers))
	}
	if resp.Header.ID != 7 {
		t.Errorf("response ID = %d, want 7", resp.Header.ID)
	}
}

func TestForward_ConcurrentIdenticalQueriesCoalesce(t *testing.T) {
	var hits int32
	upstream := fakeUpstreamUDP(t, testResponse(t, 0, false), &hits, 0)
	f := New(upstream, time.Second, nil)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id uint16) {
			defer wg.Done()
			resp, err := f.Forward(context.Background(), testQuery(t, id))
			if err != nil {
				errs <- err
				return
			}
			if resp.Header.ID != id {
				errs <- fmt.Errorf("response ID = %#x, want %#x", resp.Header.ID, id)
			}
		}(uint16(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if got := atomic.LoadInt32(&hits); got >= n {
		t.Errorf("upstream saw %d requests, want fewer than %d (singleflight should coalesce)", got, n)
	}
}

func TestForward_RejectsQuestionlessMessage(t *testing.T) {
	f := New("127.0.0.1:0", time.Second, nil)
	_, err := f.Forward(context.Background(), &message.Message{Header: message.Header{ID: 1}})
	if err == nil {
		t.Fatal("expected an error forwarding a message with no question")
	}
}
