package message

import (
	"github.com/mirelon/adnsd/internal/dnserrors"
	"github.com/mirelon/adnsd/internal/protocol"
)

// Question is a single entry of the question section per RFC 1035 §4.1.2.
type Question struct {
	Name  Name
	Type  protocol.Type
	Class protocol.Class
}

func decodeQuestion(msg []byte, offset int) (Question, int, bool, error) {
	name, pos, compressed, err := DecodeName(msg, offset)
	if err != nil {
		return Question{}, 0, false, err
	}
	if pos+4 > len(msg) {
		return Question{}, 0, false, &dnserrors.Truncation{Operation: "decode question", Offset: pos, Message: "need 4 bytes for QTYPE/QCLASS"}
	}
	q := Question{
		Name:  name,
		Type:  protocol.Type(be16(msg[pos : pos+2])),
		Class: protocol.Class(be16(msg[pos+2 : pos+4])),
	}
	return q, pos + 4, compressed, nil
}

func (q Question) encode(e *Encoder) error {
	if err := e.WriteName(q.Name); err != nil {
		return err
	}
	e.WriteUint16(uint16(q.Type))
	e.WriteUint16(uint16(q.Class))
	return nil
}
