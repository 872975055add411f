package peering

import (
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	// ErrProtocolMismatch means the remote end did not speak the
	// BitTorrent protocol during the handshake.
	ErrProtocolMismatch = errors.New("peer protocol mismatch")
	// ErrProtocolViolation means the peer broke the expected message
	// sequence or sent mismatched fields in a piece response.
	ErrProtocolViolation = errors.New("peer protocol violation")
	// ErrTruncated means the connection closed mid-frame.
	ErrTruncated = errors.New("truncated message")
	// ErrCorruptPiece means a reassembled piece failed its hash check.
	ErrCorruptPiece = errors.New("corrupt piece")
	// ErrTimeout means a wire read or write exceeded its deadline.
	ErrTimeout = errors.New("peer timed out")
)

// wrapNetErr maps transport failures onto the package's error kinds.
func wrapNetErr(err error, op string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", op, ErrTruncated)
	}
	return fmt.Errorf("%s: %w", op, err)
}
