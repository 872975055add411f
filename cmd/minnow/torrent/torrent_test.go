package torrent_test

import (
	"crypto/sha1"
	"errors"
	"strings"
	"testing"

	"minnow/cmd/minnow/bencode"
	"minnow/cmd/minnow/torrent"
)

// buildTorrent bencodes a metainfo dictionary for the given info map.
func buildTorrent(t *testing.T, info map[string]any) []byte {
	t.Helper()
	encoded, err := bencode.Encode(map[string]any{
		"announce": "http://tracker.example/announce",
		"info":     info,
	})
	if err != nil {
		t.Fatal(err)
	}
	return []byte(encoded)
}

func singleFileInfo(length, pieceLength, numPieces int) map[string]any {
	return map[string]any{
		"name":         "sample.bin",
		"piece length": pieceLength,
		"length":       length,
		"pieces":       strings.Repeat("01234567890123456789", numPieces),
	}
}

func TestParseSingleFile(t *testing.T) {
	meta, err := torrent.Parse(buildTorrent(t, singleFileInfo(1000, 400, 3)))
	if err != nil {
		t.Fatal(err)
	}

	if meta.Announce != "http://tracker.example/announce" {
		t.Errorf("announce = %q", meta.Announce)
	}
	if meta.Info.Name != "sample.bin" {
		t.Errorf("name = %q", meta.Info.Name)
	}
	if meta.Info.PieceLength != 400 {
		t.Errorf("piece length = %d", meta.Info.PieceLength)
	}
	if meta.TotalLength() != 1000 {
		t.Errorf("total length = %d", meta.TotalLength())
	}
	if meta.NumPieces() != 3 {
		t.Errorf("num pieces = %d", meta.NumPieces())
	}
}

func TestParseMultiFile(t *testing.T) {
	info := map[string]any{
		"name":         "album",
		"piece length": 400,
		"pieces":       strings.Repeat("01234567890123456789", 2),
		"files": []any{
			map[string]any{"length": 300, "path": []any{"cd1", "a.flac"}},
			map[string]any{"length": 500, "path": []any{"b.flac"}},
		},
	}

	meta, err := torrent.Parse(buildTorrent(t, info))
	if err != nil {
		t.Fatal(err)
	}

	if meta.TotalLength() != 800 {
		t.Errorf("total length = %d", meta.TotalLength())
	}
	if len(meta.Info.Files) != 2 {
		t.Fatalf("files = %v", meta.Info.Files)
	}
	if got := meta.Info.Files[0].Path; len(got) != 2 || got[0] != "cd1" || got[1] != "a.flac" {
		t.Errorf("path = %v", got)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]func() []byte{
		"not a dictionary": func() []byte { return []byte("i42e") },
		"not bencode":      func() []byte { return []byte("garbage") },
		"pieces not multiple of 20": func() []byte {
			info := singleFileInfo(1000, 400, 3)
			info["pieces"] = "too short"
			return buildTorrent(t, info)
		},
		"missing announce": func() []byte {
			encoded, err := bencode.Encode(map[string]any{"info": singleFileInfo(1000, 400, 3)})
			if err != nil {
				t.Fatal(err)
			}
			return []byte(encoded)
		},
		"missing name": func() []byte {
			info := singleFileInfo(1000, 400, 3)
			delete(info, "name")
			return buildTorrent(t, info)
		},
		"length and files both present": func() []byte {
			info := singleFileInfo(1000, 400, 3)
			info["files"] = []any{map[string]any{"length": 1000, "path": []any{"x"}}}
			return buildTorrent(t, info)
		},
		"length and files both absent": func() []byte {
			info := singleFileInfo(1000, 400, 3)
			delete(info, "length")
			return buildTorrent(t, info)
		},
		"piece length of wrong type": func() []byte {
			info := singleFileInfo(1000, 400, 3)
			info["piece length"] = "400"
			return buildTorrent(t, info)
		},
		"piece count mismatch": func() []byte {
			return buildTorrent(t, singleFileInfo(1000, 400, 5))
		},
	}

	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := torrent.Parse(build()); err == nil {
				t.Error("expected parse error, got nil")
			}
		})
	}
}

func TestParseMalformedSentinel(t *testing.T) {
	info := singleFileInfo(1000, 400, 3)
	info["pieces"] = "short"
	if _, err := torrent.Parse(buildTorrent(t, info)); !errors.Is(err, torrent.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestInfoHash(t *testing.T) {
	meta, err := torrent.Parse(buildTorrent(t, singleFileInfo(1000, 400, 3)))
	if err != nil {
		t.Fatal(err)
	}

	first, err := meta.InfoHash()
	if err != nil {
		t.Fatal(err)
	}
	second, err := meta.InfoHash()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("info hash is not stable across calls")
	}

	// the hash must be the digest of the canonical (sorted-key) encoding
	canonical, err := bencode.Encode(map[string]any{
		"length":       1000,
		"name":         "sample.bin",
		"piece length": 400,
		"pieces":       strings.Repeat("01234567890123456789", 3),
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := sha1.Sum([]byte(canonical)); first != want {
		t.Errorf("info hash %x, want %x", first, want)
	}
}

func TestPieceSize(t *testing.T) {
	meta, err := torrent.Parse(buildTorrent(t, singleFileInfo(1000, 400, 3)))
	if err != nil {
		t.Fatal(err)
	}

	for index, want := range []int{400, 400, 200} {
		got, err := meta.PieceSize(index)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("piece %d size = %d, want %d", index, got, want)
		}
	}

	if _, err := meta.PieceSize(3); err == nil {
		t.Error("expected error for out-of-range index")
	}
	if _, err := meta.PieceSize(-1); err == nil {
		t.Error("expected error for negative index")
	}
}

func TestPieceSizeExactDivision(t *testing.T) {
	meta, err := torrent.Parse(buildTorrent(t, singleFileInfo(800, 400, 2)))
	if err != nil {
		t.Fatal(err)
	}

	got, err := meta.PieceSize(1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 400 {
		t.Errorf("last piece size = %d, want full piece length", got)
	}
}

func TestPieceHashes(t *testing.T) {
	meta, err := torrent.Parse(buildTorrent(t, singleFileInfo(1000, 400, 3)))
	if err != nil {
		t.Fatal(err)
	}

	hashes := meta.PieceHashes()
	if len(hashes) != 3 {
		t.Fatalf("got %d hashes", len(hashes))
	}
	for i, h := range hashes {
		if string(h[:]) != "01234567890123456789" {
			t.Errorf("hash %d = %q", i, h)
		}
	}
}
