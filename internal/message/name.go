// Package message implements the DNS wire-format codec: domain name
// compression, the 12-byte header, questions, resource record envelopes,
// per-type RDATA, the EDNS0 OPT overlay, and top-level message encode and
// decode, per RFC 1035 and successor RFCs.
package message

import (
	"strings"

	"github.com/mirelon/adnsd/internal/dnserrors"
	"github.com/mirelon/adnsd/internal/protocol"
)

// Name is an owned domain name: an ordered sequence of labels, most
// significant (leftmost, "www") first. The root name is the empty slice.
// Labels are case-preserving on the wire; comparisons elsewhere use
// strings.EqualFold per label.
type Name []string

// ParseName splits a presentation-format name ("www.example.com" or
// "www.example.com.") into labels. A bare "." or "" is the root.
func ParseName(s string) Name {
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return Name{}
	}
	return Name(strings.Split(s, "."))
}

// String renders the name in presentation format, trailing dot included,
// matching the convention master files and query tools use.
func (n Name) String() string {
	if len(n) == 0 {
		return "."
	}
	return strings.Join(n, ".") + "."
}

// EqualFold reports whether two names compare equal under the
// case-insensitive, label-by-label rule RFC 1035 §3.1 specifies for name
// comparison. The wire form is never touched by this comparison.
func (n Name) EqualFold(other Name) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if !strings.EqualFold(n[i], other[i]) {
			return false
		}
	}
	return true
}

// wireLen returns the on-wire length of the name with no compression: one
// length octet per label, the label bytes, and a final zero octet.
func (n Name) wireLen() int {
	total := 1
	for _, l := range n {
		total += 1 + len(l)
	}
	return total
}

// DecodeName parses a domain name starting at offset within msg, following
// compression pointers per RFC 1035 §4.1.4. It returns the decoded name, the
// offset immediately after the name as it appears at the call site (for a
// name that ends in a pointer, that is the offset just past the 2-byte
// pointer, not past whatever the pointer expands to), and whether a
// compression pointer was followed at all — the per-name building block of
// the message-wide "compressed" flag spec.md §3 requires Decode to observe.
func DecodeName(msg []byte, offset int) (Name, int, bool, error) {
	if offset < 0 || offset >= len(msg) {
		return nil, 0, false, &dnserrors.Malformed{Operation: "decode name", Offset: offset, Message: "offset out of bounds"}
	}

	var labels []string
	pos := offset
	firstPointerSeen := false
	nameEnd := -1
	jumps := 0

	for {
		if pos >= len(msg) {
			return nil, 0, false, &dnserrors.Truncation{Operation: "decode name", Offset: pos, Message: "unexpected end of message while parsing name"}
		}

		lengthByte := msg[pos]

		switch {
		case lengthByte&protocol.CompressionMask == protocol.CompressionMask:
			if pos+1 >= len(msg) {
				return nil, 0, false, &dnserrors.Truncation{Operation: "decode name", Offset: pos, Message: "truncated compression pointer"}
			}
			pointerOffset := int(lengthByte&^protocol.CompressionMask)<<8 | int(msg[pos+1])

			if !firstPointerSeen {
				nameEnd = pos + 2
				firstPointerSeen = true
			}

			// Every hop must point strictly backward from where it was read,
			// which rules out cycles without needing a visited-set.
			if pointerOffset >= pos {
				return nil, 0, false, &dnserrors.Malformed{
					Operation: "decode name", Offset: pos,
					Message: "compression pointer does not point strictly backward",
				}
			}

			jumps++
			if jumps > protocol.MaxCompressionJumps {
				return nil, 0, false, &dnserrors.Malformed{Operation: "decode name", Offset: pos, Message: "too many compression jumps (possible cycle)"}
			}

			pos = pointerOffset

		case lengthByte == 0:
			pos++
			if !firstPointerSeen {
				nameEnd = pos
			}
			return finishName(labels, nameEnd, firstPointerSeen)

		case lengthByte&protocol.CompressionMask == 0:
			labelLen := int(lengthByte)
			if labelLen > protocol.MaxLabelLength {
				return nil, 0, false, &dnserrors.Malformed{Operation: "decode name", Offset: pos, Message: "label exceeds 63 bytes"}
			}
			if pos+1+labelLen > len(msg) {
				return nil, 0, false, &dnserrors.Truncation{Operation: "decode name", Offset: pos, Message: "label runs past end of message"}
			}
			labels = append(labels, string(msg[pos+1:pos+1+labelLen]))
			if len(labels) > protocol.MaxNameLabels {
				return nil, 0, false, &dnserrors.Malformed{Operation: "decode name", Offset: pos, Message: "name exceeds maximum label count"}
			}
			pos += 1 + labelLen

		default:
			return nil, 0, false, &dnserrors.Malformed{Operation: "decode name", Offset: pos, Message: "invalid label length byte (high bits 10 or 01)"}
		}
	}
}

func finishName(labels []string, nameEnd int, compressed bool) (Name, int, bool, error) {
	n := Name(labels)
	if n.wireLen() > protocol.MaxNameLength {
		return nil, 0, false, &dnserrors.Malformed{Operation: "decode name", Offset: -1, Message: "name exceeds 255-byte wire length"}
	}
	return n, nameEnd, compressed, nil
}

// EncodeUncompressed writes the name as a plain label sequence terminated
// by a zero octet, never emitting a pointer.
func (n Name) EncodeUncompressed() ([]byte, error) {
	if n.wireLen() > protocol.MaxNameLength {
		return nil, &dnserrors.Malformed{Operation: "encode name", Offset: -1, Message: "name exceeds 255-byte wire length"}
	}
	out := make([]byte, 0, n.wireLen())
	for _, l := range n {
		if len(l) > protocol.MaxLabelLength {
			return nil, &dnserrors.Malformed{Operation: "encode name", Offset: -1, Message: "label exceeds 63 bytes"}
		}
		out = append(out, byte(len(l)))
		out = append(out, l...)
	}
	out = append(out, 0)
	return out, nil
}
