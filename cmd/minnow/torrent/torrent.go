// Package torrent provides a typed view over a decoded metainfo file and
// derives the info hash from its canonical re-encoding.
package torrent

import (
	"crypto/sha1"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"minnow/cmd/minnow/bencode"
)

// ErrMalformed is returned when a metainfo file is structurally invalid.
var ErrMalformed = errors.New("malformed metainfo")

const hashLen = 20

// Metainfo is the parsed content of a .torrent file.
type Metainfo struct {
	Announce string `bencode:"announce"`
	Info     Info   `bencode:"info"`
}

// Info is the metainfo dictionary that the info hash is computed over.
// Exactly one of Length (single file) or Files (multi file) is set.
type Info struct {
	Name        string `bencode:"name"`
	PieceLength int    `bencode:"piece length"`
	Pieces      string `bencode:"pieces"`
	Length      int    `bencode:"length"`
	Files       []File `bencode:"files"`
}

// File is one entry of a multi-file layout. The last path segment is the
// file name, the rest are subdirectories.
type File struct {
	Length int      `bencode:"length"`
	Path   []string `bencode:"path"`
}

// Parse decodes and validates a metainfo file.
func Parse(data []byte) (*Metainfo, error) {
	decoded, err := bencode.DecodeAll(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode metainfo: %w", err)
	}

	dict, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is not a dictionary: %w", ErrMalformed)
	}

	var meta Metainfo
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "bencode",
		Result:  &meta,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(dict); err != nil {
		return nil, fmt.Errorf("metainfo shape: %w", ErrMalformed)
	}

	infoDict, ok := dict["info"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing info dictionary: %w", ErrMalformed)
	}
	if err := meta.validate(infoDict); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (m *Metainfo) validate(infoDict map[string]any) error {
	if m.Announce == "" {
		return fmt.Errorf("missing announce URL: %w", ErrMalformed)
	}
	if m.Info.Name == "" {
		return fmt.Errorf("missing info.name: %w", ErrMalformed)
	}
	if m.Info.PieceLength <= 0 {
		return fmt.Errorf("missing or invalid info.piece length: %w", ErrMalformed)
	}
	if len(m.Info.Pieces) == 0 {
		return fmt.Errorf("missing info.pieces: %w", ErrMalformed)
	}
	if len(m.Info.Pieces)%hashLen != 0 {
		return fmt.Errorf("info.pieces length %d is not a multiple of %d: %w", len(m.Info.Pieces), hashLen, ErrMalformed)
	}

	// length and files are mutually exclusive, exactly one required
	_, hasLength := infoDict["length"]
	_, hasFiles := infoDict["files"]
	if hasLength == hasFiles {
		return fmt.Errorf("info must have exactly one of length or files: %w", ErrMalformed)
	}
	for i, f := range m.Info.Files {
		if f.Length < 0 || len(f.Path) == 0 {
			return fmt.Errorf("invalid entry %d in info.files: %w", i, ErrMalformed)
		}
	}

	wantPieces := (m.TotalLength() + m.Info.PieceLength - 1) / m.Info.PieceLength
	if m.NumPieces() != wantPieces {
		return fmt.Errorf("have %d piece hashes for %d pieces: %w", m.NumPieces(), wantPieces, ErrMalformed)
	}
	return nil
}

// InfoHash computes the SHA-1 digest of the canonically re-encoded info
// dictionary. It is recomputed from the typed fields on every call so the
// result never depends on the byte layout of the source file.
func (m *Metainfo) InfoHash() ([20]byte, error) {
	infoMap := map[string]any{
		"name":         m.Info.Name,
		"piece length": m.Info.PieceLength,
		"pieces":       m.Info.Pieces,
	}
	if m.Info.Files == nil {
		infoMap["length"] = m.Info.Length
	} else {
		files := make([]any, 0, len(m.Info.Files))
		for _, f := range m.Info.Files {
			segments := make([]any, 0, len(f.Path))
			for _, s := range f.Path {
				segments = append(segments, s)
			}
			files = append(files, map[string]any{
				"length": f.Length,
				"path":   segments,
			})
		}
		infoMap["files"] = files
	}

	encoded, err := bencode.Encode(infoMap)
	if err != nil {
		return [20]byte{}, fmt.Errorf("encode info: %w", err)
	}
	return sha1.Sum([]byte(encoded)), nil
}

// TotalLength is the length of the whole download in bytes. For multi-file
// layouts the files are treated as concatenated in list order.
func (m *Metainfo) TotalLength() int {
	if m.Info.Files == nil {
		return m.Info.Length
	}
	total := 0
	for _, f := range m.Info.Files {
		total += f.Length
	}
	return total
}

// NumPieces returns the number of pieces in the torrent.
func (m *Metainfo) NumPieces() int {
	return len(m.Info.Pieces) / hashLen
}

// PieceHashes splits info.pieces into per-piece SHA-1 digests.
func (m *Metainfo) PieceHashes() [][20]byte {
	pieces := m.Info.Pieces
	hashes := make([][20]byte, len(pieces)/hashLen)
	for i := range hashes {
		copy(hashes[i][:], pieces[i*hashLen:(i+1)*hashLen])
	}
	return hashes
}

// PieceSize returns the logical size of the piece at the given index. All
// pieces have the full piece length except possibly the last.
func (m *Metainfo) PieceSize(index int) (int, error) {
	if index < 0 || index >= m.NumPieces() {
		return 0, fmt.Errorf("piece index %d out of range [0, %d)", index, m.NumPieces())
	}
	if index < m.NumPieces()-1 {
		return m.Info.PieceLength, nil
	}
	rem := m.TotalLength() % m.Info.PieceLength
	if rem == 0 {
		return m.Info.PieceLength, nil
	}
	return rem, nil
}
