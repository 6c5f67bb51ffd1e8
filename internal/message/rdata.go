package message

import (
	"fmt"
	"net"
	"strings"

	"github.com/mirelon/adnsd/internal/dnserrors"
	"github.com/mirelon/adnsd/internal/protocol"
)

// RData is the type-specific resource data carried by a ResourceRecord.
// Implementations encode themselves through an Encoder so that any domain
// names they contain can participate in message-wide compression.
type RData interface {
	Type() protocol.Type
	encode(e *Encoder) error
	String() string
}

// decodeRData dispatches to a per-type decoder based on rrType. msg is the
// whole message (names in RDATA may use compression pointers into it);
// start and rdlength bound the RDATA field itself. The returned bool
// reports whether any domain name inside the RDATA was reached via a
// compression pointer, feeding the message-wide "compressed" flag.
func decodeRData(msg []byte, rrType protocol.Type, start, rdlength int) (RData, bool, error) {
	end := start + rdlength
	if end > len(msg) {
		return nil, false, &dnserrors.Truncation{Operation: "decode RDATA", Offset: start, Message: "RDLENGTH runs past end of message"}
	}
	body := msg[start:end]

	switch rrType {
	case protocol.TypeA:
		rec, err := decodeA(body)
		return rec, false, err
	case protocol.TypeNS, protocol.TypeCNAME, protocol.TypeMB, protocol.TypeMD, protocol.TypeMF, protocol.TypeMG, protocol.TypeMR, protocol.TypePTR:
		name, pos, compressed, err := DecodeName(msg, start)
		if err != nil {
			return nil, false, err
		}
		if pos != end {
			return nil, false, &dnserrors.Malformed{Operation: "decode RDATA", Offset: start, Message: fmt.Sprintf("%s RDATA name length does not match RDLENGTH", rrType)}
		}
		return &DomainNameRData{RRType: rrType, Name: name}, compressed, nil
	case protocol.TypeSOA:
		return decodeSOA(msg, start, end)
	case protocol.TypeNULL:
		cp := make([]byte, len(body))
		copy(cp, body)
		return &NULLRData{Data: cp}, false, nil
	case protocol.TypeWKS:
		rec, err := decodeWKS(body)
		return rec, false, err
	case protocol.TypeHINFO:
		rec, err := decodeHINFO(body)
		return rec, false, err
	case protocol.TypeMINFO:
		return decodeMINFO(msg, start, end)
	case protocol.TypeMX:
		return decodeMX(msg, start, end)
	case protocol.TypeTXT:
		rec, err := decodeTXT(body)
		return rec, false, err
	case protocol.TypeOPT:
		rec, err := decodeOPT(body)
		return rec, false, err
	default:
		cp := make([]byte, len(body))
		copy(cp, body)
		return &RawRData{RRType: rrType, Bytes: cp}, false, nil
	}
}

// --- A ---

// ARecord is the RDATA of an A record: a single IPv4 address (RFC 1035 §3.4.1).
type ARecord struct{ Addr [4]byte }

func (r *ARecord) Type() protocol.Type { return protocol.TypeA }
func (r *ARecord) encode(e *Encoder) error {
	e.WriteRaw(r.Addr[:])
	return nil
}
func (r *ARecord) String() string { return net.IP(r.Addr[:]).String() }

func decodeA(body []byte) (*ARecord, error) {
	if len(body) != 4 {
		return nil, &dnserrors.Malformed{Operation: "decode A RDATA", Offset: -1, Message: fmt.Sprintf("want 4 bytes, got %d", len(body))}
	}
	var rec ARecord
	copy(rec.Addr[:], body)
	return &rec, nil
}

// NewARecord builds an A record from a dotted-quad or any net.IP with a
// 4-byte form.
func NewARecord(ip net.IP) (*ARecord, error) {
	v4 := ip.To4()
	if v4 == nil {
		return nil, &dnserrors.Malformed{Operation: "build A RDATA", Offset: -1, Message: fmt.Sprintf("%s is not an IPv4 address", ip)}
	}
	var rec ARecord
	copy(rec.Addr[:], v4)
	return &rec, nil
}

// --- domain-name-only RDATA: NS, CNAME, MB, MD, MF, MG, MR, PTR ---

// DomainNameRData is the shared RDATA shape for every RR type whose RDATA
// is exactly one compressible domain name (RFC 1035 §3.3.1, 3.3.2, 3.3.3,
// 3.3.4, 3.3.5, 3.3.8, 3.3.9, 3.3.10, 3.3.11, 3.3.12).
type DomainNameRData struct {
	RRType protocol.Type
	Name   Name
}

func (r *DomainNameRData) Type() protocol.Type   { return r.RRType }
func (r *DomainNameRData) encode(e *Encoder) error { return e.WriteName(r.Name) }
func (r *DomainNameRData) String() string          { return r.Name.String() }

// --- SOA ---

// SOARecord is the RDATA of a zone's start-of-authority record (RFC 1035 §3.3.13).
type SOARecord struct {
	MName   Name
	RName   Name
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func (r *SOARecord) Type() protocol.Type { return protocol.TypeSOA }

func (r *SOARecord) encode(e *Encoder) error {
	if err := e.WriteName(r.MName); err != nil {
		return err
	}
	if err := e.WriteName(r.RName); err != nil {
		return err
	}
	e.WriteUint32(r.Serial)
	e.WriteUint32(r.Refresh)
	e.WriteUint32(r.Retry)
	e.WriteUint32(r.Expire)
	e.WriteUint32(r.Minimum)
	return nil
}

func (r *SOARecord) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d", r.MName, r.RName, r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum)
}

func decodeSOA(msg []byte, start, end int) (*SOARecord, bool, error) {
	mname, pos, mCompressed, err := DecodeName(msg, start)
	if err != nil {
		return nil, false, err
	}
	rname, pos2, rCompressed, err := DecodeName(msg, pos)
	if err != nil {
		return nil, false, err
	}
	if pos2+20 != end {
		return nil, false, &dnserrors.Malformed{Operation: "decode SOA RDATA", Offset: pos2, Message: "RDLENGTH does not match five 32-bit fields after the two names"}
	}
	return &SOARecord{
		MName:   mname,
		RName:   rname,
		Serial:  be32(msg[pos2 : pos2+4]),
		Refresh: be32(msg[pos2+4 : pos2+8]),
		Retry:   be32(msg[pos2+8 : pos2+12]),
		Expire:  be32(msg[pos2+12 : pos2+16]),
		Minimum: be32(msg[pos2+16 : pos2+20]),
	}, mCompressed || rCompressed, nil
}

// --- NULL ---

// NULLRData is the RDATA of a NULL record: arbitrary, uninterpreted
// octets up to 65535 bytes (RFC 1035 §3.3.10).
type NULLRData struct{ Data []byte }

func (r *NULLRData) Type() protocol.Type    { return protocol.TypeNULL }
func (r *NULLRData) encode(e *Encoder) error { e.WriteRaw(r.Data); return nil }
func (r *NULLRData) String() string          { return fmt.Sprintf("\\# %d %x", len(r.Data), r.Data) }

// --- WKS ---

// WKSRecord describes well-known services on a host (RFC 1035 §3.4.2).
type WKSRecord struct {
	Address  [4]byte
	Protocol uint8
	Bitmap   []byte
}

func (r *WKSRecord) Type() protocol.Type { return protocol.TypeWKS }

func (r *WKSRecord) encode(e *Encoder) error {
	e.WriteRaw(r.Address[:])
	e.WriteRaw([]byte{r.Protocol})
	e.WriteRaw(r.Bitmap)
	return nil
}

func (r *WKSRecord) String() string {
	return fmt.Sprintf("%s %d <%d bytes of bitmap>", net.IP(r.Address[:]), r.Protocol, len(r.Bitmap))
}

func decodeWKS(body []byte) (*WKSRecord, error) {
	if len(body) < 5 {
		return nil, &dnserrors.Malformed{Operation: "decode WKS RDATA", Offset: -1, Message: "need at least 5 bytes (address + protocol)"}
	}
	rec := &WKSRecord{Protocol: body[4]}
	copy(rec.Address[:], body[:4])
	rec.Bitmap = append([]byte(nil), body[5:]...)
	return rec, nil
}

// --- HINFO ---

// HINFORecord identifies host CPU and OS (RFC 1035 §3.3.2).
type HINFORecord struct {
	CPU string
	OS  string
}

func (r *HINFORecord) Type() protocol.Type { return protocol.TypeHINFO }

func (r *HINFORecord) encode(e *Encoder) error {
	if err := writeCharString(e, r.CPU); err != nil {
		return err
	}
	return writeCharString(e, r.OS)
}

func (r *HINFORecord) String() string { return fmt.Sprintf("%q %q", r.CPU, r.OS) }

func decodeHINFO(body []byte) (*HINFORecord, error) {
	cpu, rest, err := readCharString(body)
	if err != nil {
		return nil, err
	}
	// RFC 8482 synthesized HINFO responses carry only the CPU
	// character-string; accept that shape rather than requiring OS too.
	if len(rest) == 0 {
		return &HINFORecord{CPU: cpu}, nil
	}
	os, rest2, err := readCharString(rest)
	if err != nil {
		return nil, err
	}
	if len(rest2) != 0 {
		return nil, &dnserrors.Malformed{Operation: "decode HINFO RDATA", Offset: -1, Message: "trailing bytes after CPU/OS character-strings"}
	}
	return &HINFORecord{CPU: cpu, OS: os}, nil
}

// SynthesizeHINFO builds the RFC 8482 fallback response to an ANY query
// for a name with no records of its own: a single record with both
// fields set to "RFC8482", signaling "ask for a more specific type".
func SynthesizeHINFO() *HINFORecord {
	return &HINFORecord{CPU: "RFC8482", OS: "RFC8482"}
}

// --- MINFO ---

// MINFORecord names mailboxes responsible for a mailing list or domain
// (RFC 1035 §3.3.7).
type MINFORecord struct {
	RMailBx Name
	EMailBx Name
}

func (r *MINFORecord) Type() protocol.Type { return protocol.TypeMINFO }

func (r *MINFORecord) encode(e *Encoder) error {
	if err := e.WriteName(r.RMailBx); err != nil {
		return err
	}
	return e.WriteName(r.EMailBx)
}

func (r *MINFORecord) String() string { return fmt.Sprintf("%s %s", r.RMailBx, r.EMailBx) }

func decodeMINFO(msg []byte, start, end int) (*MINFORecord, bool, error) {
	rmail, pos, rCompressed, err := DecodeName(msg, start)
	if err != nil {
		return nil, false, err
	}
	email, pos2, eCompressed, err := DecodeName(msg, pos)
	if err != nil {
		return nil, false, err
	}
	if pos2 != end {
		return nil, false, &dnserrors.Malformed{Operation: "decode MINFO RDATA", Offset: pos2, Message: "RDLENGTH does not match the two names"}
	}
	return &MINFORecord{RMailBx: rmail, EMailBx: email}, rCompressed || eCompressed, nil
}

// --- MX ---

// MXRecord identifies a mail exchange for the domain (RFC 1035 §3.3.9).
type MXRecord struct {
	Preference uint16
	Exchange   Name
}

func (r *MXRecord) Type() protocol.Type { return protocol.TypeMX }

func (r *MXRecord) encode(e *Encoder) error {
	e.WriteUint16(r.Preference)
	return e.WriteName(r.Exchange)
}

func (r *MXRecord) String() string { return fmt.Sprintf("%d %s", r.Preference, r.Exchange) }

func decodeMX(msg []byte, start, end int) (*MXRecord, bool, error) {
	if start+2 > end {
		return nil, false, &dnserrors.Truncation{Operation: "decode MX RDATA", Offset: start, Message: "need 2 bytes for PREFERENCE"}
	}
	pref := be16(msg[start : start+2])
	exchange, pos, compressed, err := DecodeName(msg, start+2)
	if err != nil {
		return nil, false, err
	}
	if pos != end {
		return nil, false, &dnserrors.Malformed{Operation: "decode MX RDATA", Offset: pos, Message: "RDLENGTH does not match PREFERENCE + EXCHANGE"}
	}
	return &MXRecord{Preference: pref, Exchange: exchange}, compressed, nil
}

// --- TXT ---

// TXTRecord carries one or more character-strings of free-form text
// (RFC 1035 §3.3.14).
type TXTRecord struct{ Texts []string }

func (r *TXTRecord) Type() protocol.Type { return protocol.TypeTXT }

func (r *TXTRecord) encode(e *Encoder) error {
	for _, t := range r.Texts {
		if err := writeCharString(e, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *TXTRecord) String() string { return strings.Join(r.Texts, " ") }

func decodeTXT(body []byte) (*TXTRecord, error) {
	var texts []string
	rest := body
	for len(rest) > 0 {
		s, next, err := readCharString(rest)
		if err != nil {
			return nil, err
		}
		texts = append(texts, s)
		rest = next
	}
	if len(texts) == 0 {
		texts = []string{""}
	}
	return &TXTRecord{Texts: texts}, nil
}

// --- raw / unknown ---

// RawRData is the fallback for any RR type this package has no dedicated
// codec for. The bytes are re-emitted verbatim, letting a zone or forwarded
// response carry an unrecognized type through unmodified (RFC 3597).
type RawRData struct {
	RRType protocol.Type
	Bytes  []byte
}

func (r *RawRData) Type() protocol.Type    { return r.RRType }
func (r *RawRData) encode(e *Encoder) error { e.WriteRaw(r.Bytes); return nil }
func (r *RawRData) String() string          { return fmt.Sprintf("\\# %d %x", len(r.Bytes), r.Bytes) }

// --- character-string helper (RFC 1035 §3.3: <character-string>) ---

func writeCharString(e *Encoder, s string) error {
	if len(s) > 255 {
		return &dnserrors.Malformed{Operation: "encode character-string", Offset: -1, Message: "character-string exceeds 255 bytes"}
	}
	e.WriteRaw([]byte{byte(len(s))})
	e.WriteRaw([]byte(s))
	return nil
}

func readCharString(b []byte) (string, []byte, error) {
	if len(b) < 1 {
		return "", nil, &dnserrors.Truncation{Operation: "decode character-string", Offset: -1, Message: "missing length octet"}
	}
	n := int(b[0])
	if len(b) < 1+n {
		return "", nil, &dnserrors.Truncation{Operation: "decode character-string", Offset: -1, Message: "fewer bytes than declared length"}
	}
	return string(b[1 : 1+n]), b[1+n:], nil
}
