package message

import (
	"fmt"

	"github.com/mirelon/adnsd/internal/dnserrors"
	"github.com/mirelon/adnsd/internal/protocol"
)

// EDNS0 overlays the meaning of a ResourceRecord's CLASS and TTL fields for
// the OPT pseudo-record (RFC 6891 §6.1.2). At most one OPT record may
// appear, and only in the additional section.
type EDNS0 struct {
	UDPPayloadSize uint16
	ExtendedRCode  uint8
	Version        uint8
	DO             bool // DNSSEC OK bit
	Options        []EDNSOption
}

// EDNSOption is one TLV entry of an OPT record's RDATA (RFC 6891 §6.1.2).
// Unknown option codes are preserved on re-encode but otherwise ignored.
type EDNSOption struct {
	Code uint16
	Data []byte
}

// OPTRData is the RDATA of an OPT record: a sequence of EDNSOption TLVs.
type OPTRData struct{ Options []EDNSOption }

func (r *OPTRData) Type() protocol.Type { return protocol.TypeOPT }

func (r *OPTRData) encode(e *Encoder) error {
	for _, opt := range r.Options {
		if len(opt.Data) > 0xFFFF {
			return &dnserrors.Malformed{Operation: "encode EDNS0 option", Offset: -1, Message: "option data exceeds 65535 bytes"}
		}
		e.WriteUint16(opt.Code)
		e.WriteUint16(uint16(len(opt.Data)))
		e.WriteRaw(opt.Data)
	}
	return nil
}

func (r *OPTRData) String() string { return fmt.Sprintf("%d options", len(r.Options)) }

func decodeOPT(body []byte) (*OPTRData, error) {
	var opts []EDNSOption
	rest := body
	for len(rest) > 0 {
		if len(rest) < 4 {
			return nil, &dnserrors.Truncation{Operation: "decode EDNS0 option", Offset: -1, Message: "need 4 bytes for OPTION-CODE/OPTION-LENGTH"}
		}
		code := be16(rest[0:2])
		length := int(be16(rest[2:4]))
		if len(rest) < 4+length {
			return nil, &dnserrors.Truncation{Operation: "decode EDNS0 option", Offset: -1, Message: "OPTION-LENGTH runs past end of RDATA"}
		}
		data := append([]byte(nil), rest[4:4+length]...)
		opts = append(opts, EDNSOption{Code: code, Data: data})
		rest = rest[4+length:]
	}
	return &OPTRData{Options: opts}, nil
}

// NewOPTRecord builds the additional-section OPT pseudo-record carrying
// edns. Its owner name is always the root.
func NewOPTRecord(edns EDNS0) ResourceRecord {
	ttl := uint32(edns.ExtendedRCode)<<24 | uint32(edns.Version)<<16
	if edns.DO {
		ttl |= 1 << 15
	}
	return ResourceRecord{
		Name:  Name{},
		Type:  protocol.TypeOPT,
		Class: protocol.Class(edns.UDPPayloadSize),
		TTL:   ttl,
		RData: &OPTRData{Options: edns.Options},
	}
}

// ParseEDNS0 extracts the EDNS0 fields from an OPT pseudo-record. Callers
// are expected to have already located the (at most one) OPT record in the
// additional section.
func ParseEDNS0(rr ResourceRecord) (EDNS0, error) {
	if rr.Type != protocol.TypeOPT {
		return EDNS0{}, &dnserrors.Malformed{Operation: "parse EDNS0", Offset: -1, Message: fmt.Sprintf("expected OPT record, got %s", rr.Type)}
	}
	if len(rr.Name) != 0 {
		return EDNS0{}, &dnserrors.Malformed{Operation: "parse EDNS0", Offset: -1, Message: "OPT record owner name must be root"}
	}
	opt, ok := rr.RData.(*OPTRData)
	if !ok {
		return EDNS0{}, &dnserrors.Malformed{Operation: "parse EDNS0", Offset: -1, Message: "OPT record RDATA is not an options list"}
	}
	return EDNS0{
		UDPPayloadSize: uint16(rr.Class),
		ExtendedRCode:  uint8(rr.TTL >> 24),
		Version:        uint8(rr.TTL >> 16),
		DO:             rr.TTL&(1<<15) != 0,
		Options:        opt.Options,
	}, nil
}

// CombineRCode merges the header's 4-bit base RCODE with an OPT record's
// 8-bit extended RCODE into the full 12-bit RCODE per RFC 6891 §6.1.3.
func CombineRCode(base protocol.RCode, extended uint8) uint16 {
	return uint16(extended)<<4 | uint16(base)&protocol.RCodeMask
}
