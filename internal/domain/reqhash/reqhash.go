// Package reqhash computes the content-addressed identity of a request.
//
// The request is serialized to JSON, re-parsed into a generic tree and written
// back in canonical form: object keys sorted, numbers in a fixed 'g'/17-digit
// format with -0 folded to 0, no whitespace. The canonical bytes are prefixed
// with the operation name and hashed with SHA-256. Identical requests therefore
// hash identically regardless of key order or numeric spelling on the wire.
package reqhash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Version is mixed into every hash; bump it when solver output changes for the same input.
const Version = "v1"

// Sum returns the hex SHA-256 of the canonical form of v, namespaced by op.
func Sum(op string, v any) (string, error) {
	canon, err := Canonical(v)
	if err != nil {
		return "", fmt.Errorf("reqhash: %s: %w", op, err)
	}
	h := sha256.New()
	h.Write([]byte(op + "/" + Version + "\n")) //nolint:errcheck
	h.Write(canon)                             //nolint:errcheck
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Canonical returns the canonical JSON encoding of v.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, node any) error {
	switch n := node.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(n))
	case string:
		s, err := json.Marshal(n)
		if err != nil {
			return err
		}
		buf.Write(s)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return fmt.Errorf("number %q: %w", n.String(), err)
		}
		buf.WriteString(formatNumber(f))
	case []any:
		buf.WriteByte('[')
		for i, el := range n {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			ks, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(ks)
			buf.WriteByte(':')
			if err := writeCanonical(buf, n[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unexpected JSON node %T", node)
	}
	return nil
}

func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'g', 17, 64)
}
