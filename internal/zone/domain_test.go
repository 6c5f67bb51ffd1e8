package zone

import (
	"testing"

	"github.com/mirelon/adnsd/internal/message"
	"github.com/mirelon/adnsd/internal/protocol"
)

func aRecord(t *testing.T, name string, last byte) message.ResourceRecord {
	t.Helper()
	rec, err := message.NewARecord([]byte{192, 0, 2, last})
	if err != nil {
		t.Fatalf("NewARecord: %v", err)
	}
	return message.ResourceRecord{
		Name: message.ParseName(name), Type: protocol.TypeA, Class: protocol.ClassIN,
		TTL: 300, RData: rec,
	}
}

func TestDomainTree_InsertLookup(t *testing.T) {
	tree := newDomainTree()
	rr := aRecord(t, "www.example.com.", 1)
	tree.insert(rr.Name, rr)

	records, exists := tree.lookup(message.ParseName("www.example.com."))
	if !exists {
		t.Fatal("expected name to exist")
	}
	if len(records[protocol.TypeA]) != 1 {
		t.Fatalf("got %d A records, want 1", len(records[protocol.TypeA]))
	}
}

func TestDomainTree_LookupMissingName(t *testing.T) {
	tree := newDomainTree()
	rr := aRecord(t, "www.example.com.", 1)
	tree.insert(rr.Name, rr)

	if _, exists := tree.lookup(message.ParseName("nothere.example.com.")); exists {
		t.Error("expected missing name to report not found")
	}
}

func TestDomainTree_LookupNameWithNoRecords(t *testing.T) {
	tree := newDomainTree()
	rr := aRecord(t, "www.example.com.", 1)
	tree.insert(rr.Name, rr)

	// "example.com." exists as an ancestor node but carries no records of
	// its own; it should be reported as existing with an empty RRset map.
	records, exists := tree.lookup(message.ParseName("example.com."))
	if !exists {
		t.Fatal("expected ancestor node to exist")
	}
	if len(records) != 0 {
		t.Errorf("expected no records at bare ancestor, got %v", records)
	}
}

func TestDomainTree_CaseInsensitiveLookup(t *testing.T) {
	tree := newDomainTree()
	rr := aRecord(t, "WWW.Example.COM.", 1)
	tree.insert(rr.Name, rr)

	if _, exists := tree.lookup(message.ParseName("www.example.com.")); !exists {
		t.Error("lookup should be case-insensitive")
	}
}

func TestDomainTree_EnumerateCanonicalOrder(t *testing.T) {
	tree := newDomainTree()
	for _, name := range []string{"b.example.com.", "a.example.com.", "example.com."} {
		rr := aRecord(t, name, 1)
		tree.insert(rr.Name, rr)
	}

	records := tree.enumerate()
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	want := []string{"example.com.", "a.example.com.", "b.example.com."}
	for i, w := range want {
		if records[i].Name.String() != w {
			t.Errorf("record %d: got %s, want %s", i, records[i].Name, w)
		}
	}
}
