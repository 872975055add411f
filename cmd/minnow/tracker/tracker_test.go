package tracker_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"minnow/cmd/minnow/bencode"
	"minnow/cmd/minnow/tracker"
)

func TestParseCompactPeers(t *testing.T) {
	data := string([]byte{
		192, 168, 0, 1, 0x1a, 0xe1, // 192.168.0.1:6881
		10, 0, 0, 2, 0x00, 0x50, // 10.0.0.2:80
	})

	peers, err := tracker.ParseCompactPeers(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 2 {
		t.Fatalf("got %d peers", len(peers))
	}
	if peers[0].String() != "192.168.0.1:6881" {
		t.Errorf("peer 0 = %s", peers[0])
	}
	if peers[1].String() != "10.0.0.2:80" {
		t.Errorf("peer 1 = %s", peers[1])
	}
}

func TestParseCompactPeersBadLength(t *testing.T) {
	if _, err := tracker.ParseCompactPeers("12345"); !errors.Is(err, tracker.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestAnnounceURLEncodesRawHash(t *testing.T) {
	var infoHash [20]byte
	copy(infoHash[:], []byte{0x12, 0x34, 0xff, 0x00})

	full, err := tracker.AnnounceURL("http://tracker.example/announce", tracker.Request{
		InfoHash: infoHash,
		PeerID:   "-MN0001-123456789012",
		Port:     6881,
		Left:     1000,
		Compact:  1,
	})
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := url.Parse(full)
	if err != nil {
		t.Fatal(err)
	}
	query := parsed.Query()
	if got := query.Get("info_hash"); got != string(infoHash[:]) {
		t.Errorf("info_hash round-tripped to %x", got)
	}
	if query.Get("left") != "1000" || query.Get("compact") != "1" {
		t.Errorf("unexpected query: %s", parsed.RawQuery)
	}
	// the raw hash bytes must be byte-wise percent-encoded
	if !strings.Contains(parsed.RawQuery, "%124%FF") && !strings.Contains(parsed.RawQuery, "%124%ff") {
		t.Errorf("raw query does not percent-encode hash bytes: %s", parsed.RawQuery)
	}
}

func TestAnnounce(t *testing.T) {
	peersBlob := string([]byte{127, 0, 0, 1, 0x1f, 0x90}) // 127.0.0.1:8080

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("compact") != "1" {
			t.Errorf("compact flag missing in %s", r.URL.RawQuery)
		}
		body, err := bencode.Encode(map[string]any{
			"interval": 1800,
			"peers":    peersBlob,
		})
		if err != nil {
			t.Error(err)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	resp, err := tracker.Announce(server.URL, tracker.Request{
		PeerID:  "-MN0001-123456789012",
		Port:    6881,
		Left:    500,
		Compact: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Interval != 1800 {
		t.Errorf("interval = %d", resp.Interval)
	}
	if len(resp.Peers) != 1 || resp.Peers[0].String() != "127.0.0.1:8080" {
		t.Errorf("peers = %v", resp.Peers)
	}
}

func TestParseResponseFailureReason(t *testing.T) {
	body, err := bencode.Encode(map[string]any{"failure reason": "torrent not registered"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = tracker.ParseResponse([]byte(body))
	if err == nil || !strings.Contains(err.Error(), "torrent not registered") {
		t.Errorf("expected failure reason in error, got %v", err)
	}
}

func TestParseResponseMalformed(t *testing.T) {
	for _, body := range []string{"i42e", "d8:intervali1800ee", "d8:interval4:nope5:peers0:e"} {
		if _, err := tracker.ParseResponse([]byte(body)); !errors.Is(err, tracker.ErrMalformed) {
			t.Errorf("ParseResponse(%q): expected ErrMalformed, got %v", body, err)
		}
	}
}
