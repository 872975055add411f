// Package bencode implements the bencode serialization format used by
// torrent metainfo files and tracker responses. Decoded values are generic:
// int, string, []any and map[string]any. Byte strings are represented as Go
// strings since they may hold arbitrary binary data.
package bencode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformed is returned when the input is not valid bencode.
	ErrMalformed = errors.New("malformed bencode")
	// ErrKeyNotString is returned when a dictionary key is not a byte string.
	ErrKeyNotString = errors.New("dictionary key is not a string")
)

// Decode consumes exactly one bencoded value from the front of the input and
// returns it together with the number of bytes consumed.
func Decode(bencoded string) (any, int, error) {
	if len(bencoded) == 0 {
		return nil, 0, fmt.Errorf("empty input: %w", ErrMalformed)
	}

	switch c := bencoded[0]; {
	case c >= '0' && c <= '9':
		return decodeString(bencoded)
	case c == 'i':
		return decodeInteger(bencoded)
	case c == 'l':
		return decodeList(bencoded)
	case c == 'd':
		return decodeDictionary(bencoded)
	default:
		return nil, 0, fmt.Errorf("unsupported type prefix %q: %w", string(c), ErrMalformed)
	}
}

// DecodeAll decodes a single value and fails if any input remains.
func DecodeAll(bencoded string) (any, error) {
	value, consumed, err := Decode(bencoded)
	if err != nil {
		return nil, err
	}
	if consumed != len(bencoded) {
		return nil, fmt.Errorf("%d trailing bytes after value: %w", len(bencoded)-consumed, ErrMalformed)
	}
	return value, nil
}

func decodeDictionary(bencoded string) (map[string]any, int, error) {
	content := bencoded[1:]
	result := make(map[string]any)
	consumed := 1 // for the 'd'

	for len(content) > 0 {
		if content[0] == 'e' {
			return result, consumed + 1, nil
		}

		if content[0] < '0' || content[0] > '9' {
			return nil, 0, fmt.Errorf("dictionary key starts with %q: %w", string(content[0]), ErrKeyNotString)
		}
		key, keyLen, err := decodeString(content)
		if err != nil {
			return nil, 0, fmt.Errorf("dictionary key: %w", err)
		}
		content = content[keyLen:]
		consumed += keyLen

		value, valueLen, err := Decode(content)
		if err != nil {
			return nil, 0, fmt.Errorf("dictionary value for %q: %w", key, err)
		}
		content = content[valueLen:]
		consumed += valueLen
		result[key] = value
	}

	return nil, 0, fmt.Errorf("dictionary missing end marker: %w", ErrMalformed)
}

func decodeList(bencoded string) ([]any, int, error) {
	content := bencoded[1:]
	result := make([]any, 0)
	consumed := 1 // for the 'l'

	for len(content) > 0 {
		if content[0] == 'e' {
			return result, consumed + 1, nil
		}

		value, valueLen, err := Decode(content)
		if err != nil {
			return nil, 0, err
		}
		content = content[valueLen:]
		consumed += valueLen
		result = append(result, value)
	}

	return nil, 0, fmt.Errorf("list missing end marker: %w", ErrMalformed)
}

func decodeInteger(bencoded string) (int, int, error) {
	end := strings.IndexByte(bencoded, 'e')
	if end == -1 {
		return 0, 0, fmt.Errorf("integer missing 'e' terminator: %w", ErrMalformed)
	}

	num, err := strconv.Atoi(bencoded[1:end])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid integer %q: %w", bencoded[1:end], ErrMalformed)
	}

	return num, end + 1, nil
}

func decodeString(bencoded string) (string, int, error) {
	colon := strings.IndexByte(bencoded, ':')
	if colon == -1 {
		return "", 0, fmt.Errorf("string missing colon separator: %w", ErrMalformed)
	}

	length, err := strconv.Atoi(bencoded[:colon])
	if err != nil || length < 0 {
		return "", 0, fmt.Errorf("invalid string length %q: %w", bencoded[:colon], ErrMalformed)
	}

	if colon+1+length > len(bencoded) {
		return "", 0, fmt.Errorf("string length %d exceeds remaining input: %w", length, ErrMalformed)
	}

	return bencoded[colon+1 : colon+1+length], colon + 1 + length, nil
}
