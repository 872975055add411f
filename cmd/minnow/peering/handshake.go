package peering

import (
	"fmt"
	"io"
	"net"
)

const (
	protocolString = "BitTorrent protocol"
	handshakeLen   = 68
)

// Handshake is the fixed 68-byte exchange that opens a peer connection:
// 1 length byte, the 19-byte protocol string, 8 reserved bytes, the info
// hash and the peer id.
type Handshake struct {
	InfoHash [20]byte
	PeerID   [20]byte
}

// Serialize renders the handshake to its wire form.
func (h *Handshake) Serialize() []byte {
	buf := make([]byte, 0, handshakeLen)
	buf = append(buf, byte(len(protocolString)))
	buf = append(buf, protocolString...)
	buf = append(buf, make([]byte, 8)...) // reserved
	buf = append(buf, h.InfoHash[:]...)
	buf = append(buf, h.PeerID[:]...)
	return buf
}

// ReadHandshake reads and validates a handshake from the connection.
// A wrong length byte or protocol string yields ErrProtocolMismatch.
func ReadHandshake(r io.Reader) (*Handshake, error) {
	buf := make([]byte, handshakeLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, wrapNetErr(err, "read handshake")
	}

	if buf[0] != byte(len(protocolString)) {
		return nil, fmt.Errorf("protocol string length %d: %w", buf[0], ErrProtocolMismatch)
	}
	if string(buf[1:20]) != protocolString {
		return nil, fmt.Errorf("protocol string %q: %w", buf[1:20], ErrProtocolMismatch)
	}

	h := &Handshake{}
	copy(h.InfoHash[:], buf[28:48])
	copy(h.PeerID[:], buf[48:68])
	return h, nil
}

// DoHandshake writes our handshake and reads the peer's reply over the same
// connection, returning the validated remote handshake.
func DoHandshake(conn net.Conn, infoHash [20]byte, peerID string) (*Handshake, error) {
	local := Handshake{InfoHash: infoHash}
	copy(local.PeerID[:], peerID)

	if _, err := conn.Write(local.Serialize()); err != nil {
		return nil, wrapNetErr(err, "write handshake")
	}
	return ReadHandshake(conn)
}
