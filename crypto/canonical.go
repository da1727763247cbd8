package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/anoncoinproject/anoncoin/nodeerrors"
)

// CanonicalJSON re-encodes v (via its normal json.Marshal output) into a
// byte string with struct/map keys sorted ascending, no insignificant
// whitespace, and HTML-escaping disabled. All consensus-critical hashing
// (transaction IDs, block hashes) runs over this form so that hashes are
// stable regardless of field declaration order.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for canonicalization: %w: %v", nodeerrors.ErrCryptoFailure, err)
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode for canonicalization: %w: %v", nodeerrors.ErrCryptoFailure, err)
	}

	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("marshal key: %w: %v", nodeerrors.ErrCryptoFailure, err)
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	default:
		// json.Encoder.Encode appends a trailing newline; trim it so
		// nested values concatenate without stray whitespace.
		var scratch bytes.Buffer
		scratchEnc := json.NewEncoder(&scratch)
		scratchEnc.SetEscapeHTML(false)
		if err := scratchEnc.Encode(val); err != nil {
			return fmt.Errorf("marshal value: %w: %v", nodeerrors.ErrCryptoFailure, err)
		}
		buf.Write(bytes.TrimRight(scratch.Bytes(), "\n"))
		return nil
	}
}
