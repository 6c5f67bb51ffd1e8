package message

import (
	"github.com/mirelon/adnsd/internal/dnserrors"
	"github.com/mirelon/adnsd/internal/protocol"
)

// headerLen is the fixed size of a DNS message header in bytes.
const headerLen = 12

// Header is the 12-byte DNS message header per RFC 1035 §4.1.1.
type Header struct {
	ID      uint16
	Flags   uint16
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

func (h Header) QR() bool       { return h.Flags&protocol.FlagQR != 0 }
func (h Header) AA() bool       { return h.Flags&protocol.FlagAA != 0 }
func (h Header) TC() bool       { return h.Flags&protocol.FlagTC != 0 }
func (h Header) RD() bool       { return h.Flags&protocol.FlagRD != 0 }
func (h Header) RA() bool       { return h.Flags&protocol.FlagRA != 0 }
func (h Header) Opcode() uint16 { return (h.Flags >> protocol.OpcodeShift) & protocol.OpcodeMask }
func (h Header) Z() uint16      { return (h.Flags >> protocol.ZShift) & protocol.ZMask }
func (h Header) RCode() protocol.RCode {
	return protocol.RCode(h.Flags & protocol.RCodeMask)
}

func (h *Header) setFlag(bit uint16, v bool) {
	if v {
		h.Flags |= bit
	} else {
		h.Flags &^= bit
	}
}

func (h *Header) SetQR(v bool) { h.setFlag(protocol.FlagQR, v) }
func (h *Header) SetAA(v bool) { h.setFlag(protocol.FlagAA, v) }
func (h *Header) SetTC(v bool) { h.setFlag(protocol.FlagTC, v) }
func (h *Header) SetRD(v bool) { h.setFlag(protocol.FlagRD, v) }
func (h *Header) SetRA(v bool) { h.setFlag(protocol.FlagRA, v) }

func (h *Header) SetOpcode(op uint16) {
	h.Flags = h.Flags&^(protocol.OpcodeMask<<protocol.OpcodeShift) | (op&protocol.OpcodeMask)<<protocol.OpcodeShift
}

func (h *Header) SetRCode(rc protocol.RCode) {
	h.Flags = h.Flags&^protocol.RCodeMask | uint16(rc)&protocol.RCodeMask
}

// PeekHeader reads just the fixed 12-byte header, ignoring any error in
// the sections that follow. It lets a caller that failed a full Decode
// still recover the transaction ID and RD bit needed to send a FormErr
// response (spec.md §7: "set the appropriate RCODE, copy the question
// section back" — when there's no question to copy, the ID is all that's
// left to echo).
func PeekHeader(data []byte) (Header, bool) {
	hdr, err := decodeHeader(data)
	return hdr, err == nil
}

// decodeHeader reads the fixed 12-byte header starting at offset 0.
func decodeHeader(msg []byte) (Header, error) {
	if len(msg) < headerLen {
		return Header{}, &dnserrors.Truncation{Operation: "decode header", Offset: 0, Message: "message shorter than 12-byte header"}
	}
	return Header{
		ID:      be16(msg[0:2]),
		Flags:   be16(msg[2:4]),
		QDCount: be16(msg[4:6]),
		ANCount: be16(msg[6:8]),
		NSCount: be16(msg[8:10]),
		ARCount: be16(msg[10:12]),
	}, nil
}

func (h Header) encode(e *Encoder) {
	e.WriteUint16(h.ID)
	e.WriteUint16(h.Flags)
	e.WriteUint16(h.QDCount)
	e.WriteUint16(h.ANCount)
	e.WriteUint16(h.NSCount)
	e.WriteUint16(h.ARCount)
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
