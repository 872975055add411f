// Package magnet parses magnet URIs into their torrent identity parts.
package magnet

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

const btihPrefix = "urn:btih:"

// Link is a parsed magnet URI.
type Link struct {
	InfoHash   string // 40 hex characters
	Name       string
	Trackers   []string
	ExactTopic string
}

// Parse extracts the info hash, display name and tracker URLs from a
// magnet URI. The xt parameter must carry a hex-encoded btih hash.
func Parse(uri string) (*Link, error) {
	rest, ok := strings.CutPrefix(uri, "magnet:?")
	if !ok {
		return nil, fmt.Errorf("not a magnet URI")
	}

	values, err := url.ParseQuery(rest)
	if err != nil {
		return nil, fmt.Errorf("parse magnet query: %w", err)
	}

	xt := values.Get("xt")
	infoHash, ok := strings.CutPrefix(xt, btihPrefix)
	if !ok {
		return nil, fmt.Errorf("missing %s prefix in xt parameter", btihPrefix)
	}
	if len(infoHash) != 40 {
		return nil, fmt.Errorf("info hash is %d characters, want 40", len(infoHash))
	}
	if _, err := hex.DecodeString(infoHash); err != nil {
		return nil, fmt.Errorf("info hash is not hex: %w", err)
	}

	return &Link{
		ExactTopic: xt,
		InfoHash:   infoHash,
		Name:       values.Get("dn"),
		Trackers:   values["tr"],
	}, nil
}
