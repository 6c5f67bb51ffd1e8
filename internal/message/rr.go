package message

import (
	"github.com/mirelon/adnsd/internal/dnserrors"
	"github.com/mirelon/adnsd/internal/protocol"
)

// ResourceRecord is one entry of the answer, authority, or additional
// section per RFC 1035 §4.1.3. TTL and Class are overlaid with different
// meanings for the EDNS0 OPT pseudo-record (see edns.go).
type ResourceRecord struct {
	Name  Name
	Type  protocol.Type
	Class protocol.Class
	TTL   uint32
	RData RData
}

func decodeResourceRecord(msg []byte, offset int) (ResourceRecord, int, bool, error) {
	name, pos, nameCompressed, err := DecodeName(msg, offset)
	if err != nil {
		return ResourceRecord{}, 0, false, err
	}
	if pos+10 > len(msg) {
		return ResourceRecord{}, 0, false, &dnserrors.Truncation{Operation: "decode RR", Offset: pos, Message: "need 10 bytes for TYPE/CLASS/TTL/RDLENGTH"}
	}
	rrType := protocol.Type(be16(msg[pos : pos+2]))
	class := protocol.Class(be16(msg[pos+2 : pos+4]))
	ttl := be32(msg[pos+4 : pos+8])
	rdlength := int(be16(msg[pos+8 : pos+10]))
	rdataStart := pos + 10

	rdata, rdataCompressed, err := decodeRData(msg, rrType, rdataStart, rdlength)
	if err != nil {
		return ResourceRecord{}, 0, false, err
	}

	rr := ResourceRecord{Name: name, Type: rrType, Class: class, TTL: ttl, RData: rdata}
	return rr, rdataStart + rdlength, nameCompressed || rdataCompressed, nil
}

// encode writes the RR envelope, backpatching RDLENGTH once the RDATA has
// been written — RDATA may compress names against the envelope's own NAME,
// so it has to be encoded in place rather than measured ahead of time.
func (rr ResourceRecord) encode(e *Encoder) error {
	if err := e.WriteName(rr.Name); err != nil {
		return err
	}
	e.WriteUint16(uint16(rr.Type))
	e.WriteUint16(uint16(rr.Class))
	e.WriteUint32(rr.TTL)

	rdlenOffset := e.Len()
	e.WriteUint16(0) // placeholder, backpatched below

	rdataStart := e.Len()
	if err := rr.RData.encode(e); err != nil {
		return err
	}
	rdlen := e.Len() - rdataStart
	if rdlen > 0xFFFF {
		return &dnserrors.Malformed{Operation: "encode RR", Offset: -1, Message: "RDATA exceeds 65535 bytes"}
	}
	e.buf[rdlenOffset] = byte(rdlen >> 8)
	e.buf[rdlenOffset+1] = byte(rdlen)
	return nil
}
