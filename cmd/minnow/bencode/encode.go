package bencode

import (
	"fmt"
	"slices"
	"strings"
)

// Encode renders a value tree to its bencoded form. Dictionary keys are
// emitted in sorted order, which is the canonical encoding; info-hash
// computation depends on this being deterministic.
func Encode(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%d:%s", len(v), v), nil
	case []byte: // raw byte strings, e.g. info.pieces
		return fmt.Sprintf("%d:%s", len(v), string(v)), nil
	case int:
		return fmt.Sprintf("i%de", v), nil
	case []any:
		var sb strings.Builder
		sb.WriteByte('l')
		for _, item := range v {
			encoded, err := Encode(item)
			if err != nil {
				return "", fmt.Errorf("list item: %w", err)
			}
			sb.WriteString(encoded)
		}
		sb.WriteByte('e')
		return sb.String(), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		var sb strings.Builder
		sb.WriteByte('d')
		for _, key := range keys {
			keyEncoded, err := Encode(key)
			if err != nil {
				return "", fmt.Errorf("dictionary key %q: %w", key, err)
			}
			valueEncoded, err := Encode(v[key])
			if err != nil {
				return "", fmt.Errorf("dictionary value for %q: %w", key, err)
			}
			sb.WriteString(keyEncoded)
			sb.WriteString(valueEncoded)
		}
		sb.WriteByte('e')
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unsupported type for bencode encoding: %T", value)
	}
}
