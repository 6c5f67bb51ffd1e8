package message

import (
	"net"
	"testing"

	"github.com/mirelon/adnsd/internal/protocol"
)

func TestResourceRecord_RoundTrip_A(t *testing.T) {
	a, err := NewARecord(net.ParseIP("192.0.2.1"))
	if err != nil {
		t.Fatal(err)
	}
	rr := ResourceRecord{Name: ParseName("host.example.com"), Type: protocol.TypeA, Class: protocol.ClassIN, TTL: 300, RData: a}

	e := NewEncoder()
	if err := rr.encode(e); err != nil {
		t.Fatal(err)
	}

	got, next, compressed, err := decodeResourceRecord(e.Bytes(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if next != e.Len() {
		t.Errorf("next = %d, want %d", next, e.Len())
	}
	if compressed {
		t.Error("compressed = true, want false for an A record with no names at all")
	}
	gotA, ok := got.RData.(*ARecord)
	if !ok {
		t.Fatalf("RData = %T, want *ARecord", got.RData)
	}
	if gotA.Addr != a.Addr {
		t.Errorf("Addr = %v, want %v", gotA.Addr, a.Addr)
	}
	if got.TTL != rr.TTL || got.Class != rr.Class {
		t.Errorf("TTL/Class mismatch: got %d/%d, want %d/%d", got.TTL, got.Class, rr.TTL, rr.Class)
	}
}

func TestResourceRecord_CompressesRDATANames(t *testing.T) {
	// The NS RDATA name shares a suffix with its own owner name, and should
	// compress against it once the owner has been written.
	rr := ResourceRecord{
		Name:  ParseName("example.com"),
		Type:  protocol.TypeNS,
		Class: protocol.ClassIN,
		TTL:   3600,
		RData: &DomainNameRData{RRType: protocol.TypeNS, Name: ParseName("ns1.example.com")},
	}

	e := NewEncoder()
	if err := rr.encode(e); err != nil {
		t.Fatal(err)
	}

	// owner(13) + TYPE(2) + CLASS(2) + TTL(4) + RDLENGTH(2) + "ns1"(4) + pointer(2) = 29
	if e.Len() != 13+2+2+4+2+4+2 {
		t.Errorf("encoded length = %d, want RDATA to compress against the owner name", e.Len())
	}

	got, _, compressed, err := decodeResourceRecord(e.Bytes(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !compressed {
		t.Error("compressed = false, want true: the NS target shares a suffix with the owner name")
	}
	ns := got.RData.(*DomainNameRData)
	if !ns.Name.EqualFold(ParseName("ns1.example.com")) {
		t.Errorf("NS target = %v", ns.Name)
	}
}

func TestDecodeResourceRecord_RejectsRDLENGTHOverrun(t *testing.T) {
	// A-record RR with RDLENGTH claiming 4 bytes but only 2 present.
	msg := []byte{0, byte(protocol.TypeA >> 8), byte(protocol.TypeA), 0, 1, 0, 0, 0, 0, 0, 4, 1, 2}
	if _, _, _, err := decodeResourceRecord(msg, 0); err == nil {
		t.Fatal("expected truncation error for RDLENGTH overrun")
	}
}
