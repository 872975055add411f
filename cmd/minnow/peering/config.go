package peering

import "time"

// Config carries the tunables of a peer session. Block size and port are
// configuration rather than constants so tests can run with small synthetic
// pieces.
type Config struct {
	PeerID         string // 20-byte client identifier
	Port           int    // port reported to the tracker
	BlockSize      int    // maximum bytes per block request
	DialTimeout    time.Duration
	RequestTimeout time.Duration // deadline for each wire read/write
	ShowProgress   bool
}

// DefaultConfig matches the common client defaults: 16 KiB blocks on the
// standard BitTorrent port.
var DefaultConfig = Config{
	PeerID:         "-MN0001-123456789012",
	Port:           6881,
	BlockSize:      16384,
	DialTimeout:    3 * time.Second,
	RequestTimeout: 30 * time.Second,
	ShowProgress:   true,
}
