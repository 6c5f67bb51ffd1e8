// Package message implements the DNS wire-format codec: domain name
// compression, the 12-byte header, questions, resource record envelopes,
// per-type RDATA, the EDNS0 OPT overlay, and top-level message encode and
// decode, per RFC 1035 and successor RFCs.
//
// PRIMARY TECHNICAL AUTHORITY: RFC 1035, with EDNS0 constants from RFC 6891.
package message

import (
	"github.com/mirelon/adnsd/internal/dnserrors"
	"github.com/mirelon/adnsd/internal/protocol"
)

// Message is a complete DNS message: a header and its four sections
// (RFC 1035 §4.1). The *Count fields of Header are not authoritative once
// a Message has been constructed in memory — Encode recomputes them from
// the section slice lengths.
type Message struct {
	Header     Header
	Questions  []Question
	Answers    []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord

	// Raw retains the original wire bytes this Message was decoded from
	// (spec.md §3's "retained copy of the original wire bytes" — the same
	// buffer DecodeName resolves compression pointers against while later
	// RRs are still being parsed). Nil for a Message built programmatically
	// rather than returned by Decode.
	Raw []byte

	// Compressed reports whether Decode followed at least one compression
	// pointer while parsing this message (spec.md §3's "compressed flag
	// observed during parsing"). A responder or forwarder that wants to
	// reproduce the sender's wire form exactly re-encodes with
	// Encode(m.Compressed) rather than assuming either mode; it is left
	// unset (false) on a Message that was never decoded.
	Compressed bool
}

// Decode parses a complete DNS message from its wire representation.
// Decoding never panics on malformed or truncated input; every failure
// mode surfaces as one of the internal/dnserrors kinds.
func Decode(data []byte) (*Message, error) {
	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	pos := headerLen
	m := &Message{Header: hdr, Raw: append([]byte(nil), data...)}

	var compressed bool

	m.Questions = make([]Question, 0, hdr.QDCount)
	for i := uint16(0); i < hdr.QDCount; i++ {
		q, next, qCompressed, err := decodeQuestion(data, pos)
		if err != nil {
			return nil, err
		}
		m.Questions = append(m.Questions, q)
		compressed = compressed || qCompressed
		pos = next
	}

	var sectionCompressed bool
	m.Answers, pos, sectionCompressed, err = decodeRRSection(data, pos, hdr.ANCount)
	if err != nil {
		return nil, err
	}
	compressed = compressed || sectionCompressed
	m.Authority, pos, sectionCompressed, err = decodeRRSection(data, pos, hdr.NSCount)
	if err != nil {
		return nil, err
	}
	compressed = compressed || sectionCompressed
	m.Additional, _, sectionCompressed, err = decodeRRSection(data, pos, hdr.ARCount)
	if err != nil {
		return nil, err
	}
	compressed = compressed || sectionCompressed

	m.Compressed = compressed
	return m, nil
}

func decodeRRSection(data []byte, pos int, count uint16) ([]ResourceRecord, int, bool, error) {
	rrs := make([]ResourceRecord, 0, count)
	var compressed bool
	for i := uint16(0); i < count; i++ {
		rr, next, rrCompressed, err := decodeResourceRecord(data, pos)
		if err != nil {
			return nil, 0, false, err
		}
		rrs = append(rrs, rr)
		compressed = compressed || rrCompressed
		pos = next
	}
	return rrs, pos, compressed, nil
}

// Encode serializes the message to wire format. When compress is true,
// domain names are compressed against earlier occurrences in the same
// message per RFC 1035 §4.1.4; when false, every name is written out in
// full, which master-file comparisons and some test fixtures require.
func (m *Message) Encode(compress bool) ([]byte, error) {
	if len(m.Questions) > 0xFFFF || len(m.Answers) > 0xFFFF || len(m.Authority) > 0xFFFF || len(m.Additional) > 0xFFFF {
		return nil, &dnserrors.Malformed{Operation: "encode message", Offset: -1, Message: "section has more than 65535 entries"}
	}

	hdr := m.Header
	hdr.QDCount = uint16(len(m.Questions))
	hdr.ANCount = uint16(len(m.Answers))
	hdr.NSCount = uint16(len(m.Authority))
	hdr.ARCount = uint16(len(m.Additional))

	var e *Encoder
	if compress {
		e = NewEncoder()
	} else {
		e = NewEncoderNoCompression()
	}

	hdr.encode(e)

	for _, q := range m.Questions {
		if err := q.encode(e); err != nil {
			return nil, err
		}
	}
	for _, section := range [][]ResourceRecord{m.Answers, m.Authority, m.Additional} {
		for _, rr := range section {
			if err := rr.encode(e); err != nil {
				return nil, err
			}
		}
	}

	return e.Bytes(), nil
}

// EDNS0 returns the parsed EDNS0 fields from the message's OPT record, if
// any, and reports whether one was present. Per RFC 6891 §6.1.1 an OPT
// record belongs only in the additional section, and a message carrying
// more than one is malformed.
func (m *Message) EDNS0() (EDNS0, bool, error) {
	var found *ResourceRecord
	for i := range m.Additional {
		if m.Additional[i].Type != protocol.TypeOPT {
			continue
		}
		if found != nil {
			return EDNS0{}, false, &dnserrors.Malformed{Operation: "parse EDNS0", Offset: -1, Message: "more than one OPT record in additional section"}
		}
		found = &m.Additional[i]
	}
	if found == nil {
		return EDNS0{}, false, nil
	}
	edns, err := ParseEDNS0(*found)
	if err != nil {
		return EDNS0{}, false, err
	}
	return edns, true, nil
}

// EffectiveRCode returns the 12-bit RCODE the message actually carries:
// the header's base RCODE alone if there is no OPT record, or combined
// with the OPT record's extended RCODE per RFC 6891 §6.1.3.
func (m *Message) EffectiveRCode() (uint16, error) {
	edns, ok, err := m.EDNS0()
	if err != nil {
		return 0, err
	}
	if !ok {
		return uint16(m.Header.RCode()), nil
	}
	return CombineRCode(m.Header.RCode(), edns.ExtendedRCode), nil
}
