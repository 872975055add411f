package peering

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageID is the one-byte tag of a framed peer message.
type MessageID uint8

const (
	Choke         MessageID = 0
	Unchoke       MessageID = 1
	Interested    MessageID = 2
	NotInterested MessageID = 3
	Have          MessageID = 4
	Bitfield      MessageID = 5
	Request       MessageID = 6
	Piece         MessageID = 7
	Cancel        MessageID = 8
)

func (id MessageID) String() string {
	switch id {
	case Choke:
		return "choke"
	case Unchoke:
		return "unchoke"
	case Interested:
		return "interested"
	case NotInterested:
		return "not interested"
	case Have:
		return "have"
	case Bitfield:
		return "bitfield"
	case Request:
		return "request"
	case Piece:
		return "piece"
	case Cancel:
		return "cancel"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(id))
	}
}

// Message is one framed peer message. A nil *Message is the keep-alive: a
// frame of length zero with no tag or payload.
type Message struct {
	ID      MessageID
	Payload []byte
}

func (m *Message) String() string {
	if m == nil {
		return "keep-alive"
	}
	return fmt.Sprintf("%s [%d]", m.ID, len(m.Payload))
}

// Serialize frames the message: 4-byte big-endian length of tag plus
// payload, then the tag byte, then the payload.
func (m *Message) Serialize() []byte {
	if m == nil {
		return make([]byte, 4) // keep-alive
	}

	length := uint32(1 + len(m.Payload))
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(m.ID)
	copy(buf[5:], m.Payload)
	return buf
}

// WriteMessage sends one framed message over the connection.
func WriteMessage(w io.Writer, m *Message) error {
	if _, err := w.Write(m.Serialize()); err != nil {
		return wrapNetErr(err, fmt.Sprintf("send %s", m))
	}
	return nil
}

// ReadMessage reads one framed message. It returns (nil, nil) for a
// keep-alive. A connection that closes before the declared frame length is
// fully read yields ErrTruncated.
func ReadMessage(r io.Reader) (*Message, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, wrapNetErr(err, "read message length")
	}

	length := binary.BigEndian.Uint32(lenBuf)
	if length == 0 {
		return nil, nil // keep-alive
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, wrapNetErr(err, "read message body")
	}

	return &Message{ID: MessageID(frame[0]), Payload: frame[1:]}, nil
}

// FormatRequest builds the 12-byte payload of a request message.
func FormatRequest(index, begin, length int) *Message {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], uint32(index))
	binary.BigEndian.PutUint32(payload[4:8], uint32(begin))
	binary.BigEndian.PutUint32(payload[8:12], uint32(length))
	return &Message{ID: Request, Payload: payload}
}

// ParsePiece validates a piece message against the request it answers and
// returns its block bytes. Any mismatch in tag, index, offset or block
// length is ErrProtocolViolation and no data is returned.
func ParsePiece(index, begin, length int, m *Message) ([]byte, error) {
	if m == nil || m.ID != Piece {
		return nil, fmt.Errorf("expected piece message, got %s: %w", m, ErrProtocolViolation)
	}
	if len(m.Payload) < 8 {
		return nil, fmt.Errorf("piece payload is %d bytes: %w", len(m.Payload), ErrProtocolViolation)
	}

	gotIndex := int(binary.BigEndian.Uint32(m.Payload[0:4]))
	if gotIndex != index {
		return nil, fmt.Errorf("piece index %d, requested %d: %w", gotIndex, index, ErrProtocolViolation)
	}

	gotBegin := int(binary.BigEndian.Uint32(m.Payload[4:8]))
	if gotBegin != begin {
		return nil, fmt.Errorf("piece offset %d, requested %d: %w", gotBegin, begin, ErrProtocolViolation)
	}

	block := m.Payload[8:]
	if len(block) != length {
		return nil, fmt.Errorf("block is %d bytes, requested %d: %w", len(block), length, ErrProtocolViolation)
	}
	return block, nil
}
