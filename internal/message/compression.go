package message

import (
	"strings"

	"github.com/mirelon/adnsd/internal/dnserrors"
	"github.com/mirelon/adnsd/internal/protocol"
)

// Encoder accumulates an encoded DNS message and tracks which name suffixes
// have already been written, so subsequent occurrences can be replaced with
// a 14-bit compression pointer per RFC 1035 §4.1.4. An Encoder is scoped to
// a single message: the suffix index is never shared across calls.
type Encoder struct {
	buf      []byte
	index    map[string]int // lowercased dotted suffix -> offset it starts at
	compress bool
}

// NewEncoder returns an Encoder that writes names with compression enabled.
func NewEncoder() *Encoder {
	return &Encoder{index: make(map[string]int), compress: true}
}

// NewEncoderNoCompression returns an Encoder that never emits pointers,
// useful for producing canonical wire forms to compare or hash.
func NewEncoderNoCompression() *Encoder {
	return &Encoder{compress: false}
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

// Bytes returns the accumulated message bytes.
func (e *Encoder) Bytes() []byte { return e.buf }

// WriteRaw appends bytes verbatim, for fields with no name compression
// concern (header fields, TTLs, fixed-format RDATA).
func (e *Encoder) WriteRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteUint16 appends a big-endian 16-bit value.
func (e *Encoder) WriteUint16(v uint16) {
	e.buf = append(e.buf, byte(v>>8), byte(v))
}

// WriteUint32 appends a big-endian 32-bit value.
func (e *Encoder) WriteUint32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteName writes a domain name, compressing against any suffix already
// present earlier in the message. Every suffix of n that starts at an
// offset small enough to be addressed by a pointer (<2^14) is entered into
// the index so later names can point into this one in turn.
func (e *Encoder) WriteName(n Name) error {
	if !e.compress || len(n) == 0 {
		return e.writeNameLiteral(n)
	}

	for i := 0; i < len(n); i++ {
		suffix := suffixKey(n[i:])
		offset, ok := e.index[suffix]
		if !ok {
			continue
		}
		// Write the labels before the matched suffix, then a pointer.
		if err := e.writeLabels(n[:i]); err != nil {
			return err
		}
		e.buf = append(e.buf, protocol.CompressionMask|byte(offset>>8), byte(offset))
		return nil
	}

	return e.writeNameLiteral(n)
}

// writeNameLiteral writes every label of n followed by the zero terminator,
// recording the offset of each suffix along the way for future compression.
func (e *Encoder) writeNameLiteral(n Name) error {
	for i := 0; i < len(n); i++ {
		e.recordSuffix(n[i:])
		if len(n[i]) > protocol.MaxLabelLength {
			return labelTooLong(n[i])
		}
		e.buf = append(e.buf, byte(len(n[i])))
		e.buf = append(e.buf, n[i]...)
	}
	e.buf = append(e.buf, 0)
	return nil
}

// writeLabels writes labels with no terminator, used for the portion of a
// name that precedes a compression pointer.
func (e *Encoder) writeLabels(labels Name) error {
	for i, l := range labels {
		e.recordSuffix(labels[i:])
		if len(l) > protocol.MaxLabelLength {
			return labelTooLong(l)
		}
		e.buf = append(e.buf, byte(len(l)))
		e.buf = append(e.buf, l...)
	}
	return nil
}

func (e *Encoder) recordSuffix(suffix Name) {
	if !e.compress || len(e.buf) > protocol.MaxCompressibleOffset {
		return
	}
	key := suffixKey(suffix)
	if _, exists := e.index[key]; !exists {
		e.index[key] = len(e.buf)
	}
}

func suffixKey(labels Name) string {
	return strings.ToLower(strings.Join(labels, "."))
}

func labelTooLong(label string) error {
	return &dnserrors.Malformed{Operation: "encode name", Offset: -1, Message: "label " + label + " exceeds 63 bytes"}
}
