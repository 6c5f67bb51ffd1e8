package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mirelon/adnsd/internal/config"
	"github.com/mirelon/adnsd/internal/message"
	"github.com/mirelon/adnsd/internal/protocol"
	"github.com/mirelon/adnsd/internal/transport"
	"github.com/mirelon/adnsd/internal/zone"
)

func writeZoneFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func testStore(t *testing.T, zoneLines string) *zone.Store {
	t.Helper()
	dir := t.TempDir()
	writeZoneFile(t, dir, "example.com.zone", zoneLines)
	store := zone.NewStore(nil)
	if err := store.Reload(dir); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return store
}

func aQuery(id uint16, name string, qtype protocol.Type, class protocol.Class) *message.Message {
	m := &message.Message{
		Header:    message.Header{ID: id, QDCount: 1},
		Questions: []message.Question{{Name: message.ParseName(name), Type: qtype, Class: class}},
	}
	m.Header.SetRD(true)
	return m
}

func TestBuildResponse_NoErrorWithAnswer(t *testing.T) {
	store := testStore(t, "www.example.com. 1 1 300 192.0.2.1\n")
	cfg := &config.Config{Protocol: config.ProtocolUDP, Port: 53}
	s := New(cfg, store, nil, nil)

	resp := s.buildResponse(context.Background(), aQuery(1, "www.example.com.", protocol.TypeA, protocol.ClassIN))

	if resp.Header.RCode() != protocol.RCodeNoError {
		t.Errorf("RCode = %s, want NOERROR", resp.Header.RCode())
	}
	if !resp.Header.AA() {
		t.Error("expected AA=true for an authoritative answer")
	}
	if len(resp.Answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(resp.Answers))
	}
	if resp.Header.ID != 1 {
		t.Errorf("response ID = %d, want 1", resp.Header.ID)
	}
}

func TestBuildResponse_NXDomainForAbsentName(t *testing.T) {
	store := testStore(t, "www.example.com. 1 1 300 192.0.2.1\n")
	cfg := &config.Config{Protocol: config.ProtocolUDP, Port: 53}
	s := New(cfg, store, nil, nil)

	resp := s.buildResponse(context.Background(), aQuery(2, "nope.example.com.", protocol.TypeA, protocol.ClassIN))

	if resp.Header.RCode() != protocol.RCodeNXDomain {
		t.Errorf("RCode = %s, want NXDOMAIN", resp.Header.RCode())
	}
	if !resp.Header.AA() {
		t.Error("expected AA=true: this server is authoritative for the zone")
	}
}

func TestBuildResponse_RefusedWhenNotAuthoritativeAndForwardingDisabled(t *testing.T) {
	store := testStore(t, "www.example.com. 1 1 300 192.0.2.1\n")
	cfg := &config.Config{Protocol: config.ProtocolUDP, Port: 53}
	s := New(cfg, store, nil, nil)

	resp := s.buildResponse(context.Background(), aQuery(3, "www.example.com.", protocol.TypeA, protocol.ClassCH))

	if resp.Header.RCode() != protocol.RCodeRefused {
		t.Errorf("RCode = %s, want REFUSED", resp.Header.RCode())
	}
}

func TestBuildResponse_NotImpForNonQueryOpcode(t *testing.T) {
	store := testStore(t, "www.example.com. 1 1 300 192.0.2.1\n")
	cfg := &config.Config{Protocol: config.ProtocolUDP, Port: 53}
	s := New(cfg, store, nil, nil)

	query := aQuery(4, "www.example.com.", protocol.TypeA, protocol.ClassIN)
	query.Header.SetOpcode(protocol.OpcodeStatus)

	resp := s.buildResponse(context.Background(), query)
	if resp.Header.RCode() != protocol.RCodeNotImp {
		t.Errorf("RCode = %s, want NOTIMP", resp.Header.RCode())
	}
}

func TestBuildResponse_FormErrForZeroQuestions(t *testing.T) {
	store := testStore(t, "www.example.com. 1 1 300 192.0.2.1\n")
	cfg := &config.Config{Protocol: config.ProtocolUDP, Port: 53}
	s := New(cfg, store, nil, nil)

	resp := s.buildResponse(context.Background(), &message.Message{Header: message.Header{ID: 5}})
	if resp.Header.RCode() != protocol.RCodeFormErr {
		t.Errorf("RCode = %s, want FORMERR", resp.Header.RCode())
	}
}

func TestFormErrResponse_DropsUnparsableHeader(t *testing.T) {
	store := testStore(t, "www.example.com. 1 1 300 192.0.2.1\n")
	cfg := &config.Config{Protocol: config.ProtocolUDP, Port: 53}
	s := New(cfg, store, nil, nil)

	if resp := s.formErrResponse([]byte{1, 2, 3}); resp != nil {
		t.Error("expected nil response for a message shorter than the 12-byte header")
	}
}

func TestFormErrResponse_EchoesTransactionID(t *testing.T) {
	store := testStore(t, "www.example.com. 1 1 300 192.0.2.1\n")
	cfg := &config.Config{Protocol: config.ProtocolUDP, Port: 53}
	s := New(cfg, store, nil, nil)

	query := aQuery(0xBEEF, "www.example.com.", protocol.TypeA, protocol.ClassIN)
	raw, err := query.Encode(true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw = raw[:14] // truncate mid-question to force a decode failure past the header

	resp := s.formErrResponse(raw)
	if resp == nil {
		t.Fatal("expected a FormErr response, got nil")
	}
	if resp.Header.ID != 0xBEEF {
		t.Errorf("response ID = %#x, want %#x", resp.Header.ID, 0xBEEF)
	}
	if resp.Header.RCode() != protocol.RCodeFormErr {
		t.Errorf("RCode = %s, want FORMERR", resp.Header.RCode())
	}
}

func TestEncodeUDPResponse_TruncatesOversizeAnswer(t *testing.T) {
	resp := &message.Message{
		Header:    message.Header{ID: 6},
		Questions: []message.Question{{Name: message.ParseName("big.example.com."), Type: protocol.TypeTXT, Class: protocol.ClassIN}},
	}
	for i := 0; i < 50; i++ {
		rec := &message.TXTRecord{Texts: []string{"this is a moderately long TXT record value used to force truncation"}}
		resp.Answers = append(resp.Answers, message.ResourceRecord{
			Name: message.ParseName("big.example.com."), Type: protocol.TypeTXT, Class: protocol.ClassIN, TTL: 300, RData: rec,
		})
	}

	b, err := encodeUDPResponse(resp, defaultUDPPayload)
	if err != nil {
		t.Fatalf("encodeUDPResponse: %v", err)
	}
	if len(b) > defaultUDPPayload {
		t.Fatalf("encoded response is %d bytes, want at most %d", len(b), defaultUDPPayload)
	}

	decoded, err := message.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !decoded.Header.TC() {
		t.Error("expected TC=true on a truncated response")
	}
	if len(decoded.Answers) != 0 {
		t.Errorf("expected a truncated response to carry no answers, got %d", len(decoded.Answers))
	}
	if len(decoded.Questions) != 1 {
		t.Errorf("expected the question section to survive truncation, got %d questions", len(decoded.Questions))
	}
}

func TestUDPPayloadLimit_UsesEDNS0WhenLarger(t *testing.T) {
	query := aQuery(1, "www.example.com.", protocol.TypeA, protocol.ClassIN)
	query.Additional = []message.ResourceRecord{message.NewOPTRecord(message.EDNS0{UDPPayloadSize: 4096})}

	if got := udpPayloadLimit(query); got != 4096 {
		t.Errorf("udpPayloadLimit = %d, want 4096", got)
	}
}

func TestUDPPayloadLimit_DefaultsWithoutEDNS0(t *testing.T) {
	query := aQuery(1, "www.example.com.", protocol.TypeA, protocol.ClassIN)
	if got := udpPayloadLimit(query); got != defaultUDPPayload {
		t.Errorf("udpPayloadLimit = %d, want %d", got, defaultUDPPayload)
	}
}

func TestEndToEnd_UDPQueryAnswered(t *testing.T) {
	store := testStore(t, "www.example.com. 1 1 300 192.0.2.1\n")
	cfg := &config.Config{Protocol: config.ProtocolUDP, Port: 53}
	s := New(cfg, store, nil, nil)

	listener, err := transport.NewUDPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDPListener: %v", err)
	}
	defer listener.Close()

	client, err := transport.NewUDPClient()
	if err != nil {
		t.Fatalf("NewUDPClient: %v", err)
	}
	defer client.Close()

	query := aQuery(0x42, "www.example.com.", protocol.TypeA, protocol.ClassIN)
	reqBytes, err := query.Encode(true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Send(ctx, reqBytes, listener.LocalAddr()); err != nil {
		t.Fatalf("client.Send: %v", err)
	}

	packet, clientAddr, err := listener.Receive(ctx)
	if err != nil {
		t.Fatalf("listener.Receive: %v", err)
	}
	s.handleUDPQuery(ctx, listener, packet, clientAddr)

	respBytes, _, err := client.Receive(ctx)
	if err != nil {
		t.Fatalf("client.Receive: %v", err)
	}
	resp, err := message.Decode(respBytes)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if resp.Header.ID != 0x42 {
		t.Errorf("response ID = %#x, want %#x", resp.Header.ID, 0x42)
	}
	if resp.Header.RCode() != protocol.RCodeNoError {
		t.Errorf("RCode = %s, want NOERROR", resp.Header.RCode())
	}
	if len(resp.Answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(resp.Answers))
	}
}
