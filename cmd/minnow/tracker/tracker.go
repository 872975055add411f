// Package tracker builds announce requests and decodes the compact peer
// list from a tracker's bencoded response.
package tracker

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"minnow/cmd/minnow/bencode"
)

// ErrMalformed is returned when a tracker response is structurally invalid.
var ErrMalformed = errors.New("malformed tracker response")

const peerSize = 6 // 4-byte IPv4 + 2-byte big-endian port

// Request carries the announce query parameters.
type Request struct {
	InfoHash   [20]byte
	PeerID     string
	Port       int
	Uploaded   int
	Downloaded int
	Left       int
	Compact    int
}

// Response is the decoded announce reply. Interval is the suggested
// re-announce period in seconds.
type Response struct {
	Interval int
	Peers    []Peer
}

// Peer is one address from the tracker's peer list.
type Peer struct {
	IP   net.IP
	Port uint16
}

func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// AnnounceURL renders the full announce URL. The info hash is placed into
// the query as its raw bytes; url.Values percent-encodes each byte on the
// way out.
func AnnounceURL(announce string, req Request) (string, error) {
	base, err := url.Parse(announce)
	if err != nil {
		return "", fmt.Errorf("parse announce URL: %w", err)
	}

	base.RawQuery = url.Values{
		"info_hash":  []string{string(req.InfoHash[:])},
		"peer_id":    []string{req.PeerID},
		"port":       []string{strconv.Itoa(req.Port)},
		"uploaded":   []string{strconv.Itoa(req.Uploaded)},
		"downloaded": []string{strconv.Itoa(req.Downloaded)},
		"left":       []string{strconv.Itoa(req.Left)},
		"compact":    []string{strconv.Itoa(req.Compact)},
	}.Encode()

	return base.String(), nil
}

// Announce queries the tracker and decodes its reply.
func Announce(announce string, req Request) (*Response, error) {
	fullURL, err := AnnounceURL(announce, req)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(fullURL)
	if err != nil {
		return nil, fmt.Errorf("contact tracker: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tracker response: %w", err)
	}

	return ParseResponse(body)
}

// ParseResponse decodes a bencoded announce reply.
func ParseResponse(body []byte) (*Response, error) {
	decoded, err := bencode.DecodeAll(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode tracker response: %w", err)
	}

	dict, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("response is not a dictionary: %w", ErrMalformed)
	}

	if failure, ok := dict["failure reason"].(string); ok {
		return nil, fmt.Errorf("tracker failure: %s", failure)
	}

	interval, ok := dict["interval"].(int)
	if !ok {
		return nil, fmt.Errorf("missing interval: %w", ErrMalformed)
	}

	peersData, ok := dict["peers"].(string)
	if !ok {
		return nil, fmt.Errorf("missing compact peers: %w", ErrMalformed)
	}

	peers, err := ParseCompactPeers(peersData)
	if err != nil {
		return nil, err
	}

	return &Response{Interval: interval, Peers: peers}, nil
}

// ParseCompactPeers unpacks the compact peer list, 6 bytes per peer.
func ParseCompactPeers(peersData string) ([]Peer, error) {
	if len(peersData)%peerSize != 0 {
		return nil, fmt.Errorf("peer list length %d is not a multiple of %d: %w", len(peersData), peerSize, ErrMalformed)
	}

	peers := make([]Peer, 0, len(peersData)/peerSize)
	for i := 0; i < len(peersData); i += peerSize {
		peers = append(peers, Peer{
			IP:   net.IP([]byte(peersData[i : i+4])),
			Port: binary.BigEndian.Uint16([]byte(peersData[i+4 : i+6])),
		})
	}
	return peers, nil
}
