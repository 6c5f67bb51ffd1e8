// Package protocol defines DNS wire-format constants shared by the message
// codec, the zone store, and the server loop: RR types, classes, header
// flags, and the RFC 1035 §3.1/§4.1.4 name and compression limits.
//
// PRIMARY TECHNICAL AUTHORITY: RFC 1035, with EDNS0 constants from RFC 6891.
package protocol

import "strconv"

// Type identifies a DNS resource record type per RFC 1035 §3.2.2.
type Type uint16

// Resource record types covered by this implementation (spec.md §3).
const (
	TypeA     Type = 1
	TypeNS    Type = 2
	TypeMD    Type = 3
	TypeMF    Type = 4
	TypeCNAME Type = 5
	TypeSOA   Type = 6
	TypeMB    Type = 7
	TypeMG    Type = 8
	TypeMR    Type = 9
	TypeNULL  Type = 10
	TypeWKS   Type = 11
	TypePTR   Type = 12
	TypeHINFO Type = 13
	TypeMINFO Type = 14
	TypeMX    Type = 15
	TypeTXT   Type = 16
	TypeOPT   Type = 41

	// TypeANY is a QTYPE-only value (RFC 1035 §3.2.3): valid in the
	// question section to request every RRset at a name, never as the
	// TYPE of a stored resource record.
	TypeANY Type = 255
)

// String returns the conventional mnemonic for a Type, or "TYPEn" per
// RFC 3597 for anything not in the known set.
func (t Type) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeMD:
		return "MD"
	case TypeMF:
		return "MF"
	case TypeCNAME:
		return "CNAME"
	case TypeSOA:
		return "SOA"
	case TypeMB:
		return "MB"
	case TypeMG:
		return "MG"
	case TypeMR:
		return "MR"
	case TypeNULL:
		return "NULL"
	case TypeWKS:
		return "WKS"
	case TypePTR:
		return "PTR"
	case TypeHINFO:
		return "HINFO"
	case TypeMINFO:
		return "MINFO"
	case TypeMX:
		return "MX"
	case TypeTXT:
		return "TXT"
	case TypeOPT:
		return "OPT"
	case TypeANY:
		return "ANY"
	default:
		return typeName(t)
	}
}

// IsKnown reports whether a codec exists for this type's RDATA. Unknown
// types are still parsed (raw RDATA) and re-emitted verbatim (spec.md
// §4.5). No codec builds their RDATA from fields, but message.RawRData is
// exported, so a caller can also fill one in by hand and it is encoded
// as given; nothing checks its bytes against the TYPE.
func (t Type) IsKnown() bool {
	switch t {
	case TypeA, TypeNS, TypeMD, TypeMF, TypeCNAME, TypeSOA, TypeMB, TypeMG, TypeMR,
		TypeNULL, TypeWKS, TypePTR, TypeHINFO, TypeMINFO, TypeMX, TypeTXT, TypeOPT:
		return true
	default:
		return false
	}
}

// Class identifies a DNS protocol class per RFC 1035 §3.2.4.
type Class uint16

const (
	ClassIN  Class = 1 // Internet
	ClassCS  Class = 2 // CSNET (obsolete)
	ClassCH  Class = 3 // Chaos
	ClassHS  Class = 4 // Hesiod
	ClassANY Class = 255
)

// Header flag bit positions and masks per RFC 1035 §4.1.1.
const (
	FlagQR uint16 = 1 << 15 // Query (0) / Response (1)
	FlagAA uint16 = 1 << 10 // Authoritative Answer
	FlagTC uint16 = 1 << 9  // Truncated
	FlagRD uint16 = 1 << 8  // Recursion Desired
	FlagRA uint16 = 1 << 7  // Recursion Available

	// OpcodeShift/OpcodeMask extract the 4-bit OPCODE (bits 11-14).
	OpcodeShift = 11
	OpcodeMask  = 0x0F

	// ZShift/ZMask extract the 3 reserved bits (bits 4-6). Implementations
	// MUST preserve unknown Z bits verbatim on round-trip (spec.md §4.2).
	ZShift = 4
	ZMask  = 0x07

	// RCodeMask extracts the 4-bit base RCODE (bits 0-3).
	RCodeMask = 0x0F
)

// Opcode values per RFC 1035 §4.1.1.
const (
	OpcodeQuery  uint16 = 0
	OpcodeIQuery uint16 = 1
	OpcodeStatus uint16 = 2
)

// RCode values emitted by this server, per spec.md §6.
type RCode uint16

const (
	RCodeNoError  RCode = 0
	RCodeFormErr  RCode = 1
	RCodeServFail RCode = 2
	RCodeNXDomain RCode = 3
	RCodeNotImp   RCode = 4
	RCodeRefused  RCode = 5
)

func (r RCode) String() string {
	switch r {
	case RCodeNoError:
		return "NOERROR"
	case RCodeFormErr:
		return "FORMERR"
	case RCodeServFail:
		return "SERVFAIL"
	case RCodeNXDomain:
		return "NXDOMAIN"
	case RCodeNotImp:
		return "NOTIMP"
	case RCodeRefused:
		return "REFUSED"
	default:
		return "RCODE" + strconv.Itoa(int(r))
	}
}

// Name and compression limits per RFC 1035 §3.1/§4.1.4.
const (
	// MaxLabelLength is the maximum length of a single label, in bytes.
	MaxLabelLength = 63

	// MaxNameLength is the maximum total wire length of a domain name,
	// including every length octet and the final zero octet.
	MaxNameLength = 255

	// MaxNameLabels bounds the number of labels a decoded name may expand
	// to, guarding against pathological (but in-bounds) pointer chains.
	MaxNameLabels = 128

	// MaxCompressionJumps bounds the number of pointer hops followed while
	// decoding a single name, guarding against pointer cycles.
	MaxCompressionJumps = 128

	// CompressionMask identifies a compression pointer: the top two bits
	// of the length byte are both set (0b11xxxxxx).
	CompressionMask byte = 0xC0

	// MaxCompressibleOffset is the largest byte offset a 14-bit pointer
	// can address. Suffixes first seen beyond this offset are not entered
	// into the compression index.
	MaxCompressibleOffset = 1<<14 - 1
)

// EDNS0 constants per RFC 6891.
const (
	// DefaultUDPPayloadSize is used when a query carries no OPT record.
	DefaultUDPPayloadSize = 512
)

func typeName(t Type) string {
	return "TYPE" + strconv.Itoa(int(t))
}
