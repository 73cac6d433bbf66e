package commitment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalJSON serializes a payload into its canonical JSON form:
// compact output with object keys sorted ascending, recursively.
// Every fingerprint producer and consumer must apply this exact rule
// or fingerprints silently diverge.
func CanonicalJSON(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload:\n%w", err)
	}

	// Round-trip through a generic tree so key order and number
	// representation no longer depend on the caller's Go types.
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var tree any
	if err := decoder.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode payload:\n%w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// writeCanonical writes one JSON value in canonical form.
func writeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case map[string]any:
		return writeCanonicalObject(buf, v)

	case []any:
		buf.WriteByte('[')

		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}

		buf.WriteByte(']')

		return nil

	case json.Number:
		buf.WriteString(v.String())
		return nil

	default:
		// Strings, booleans and null have a single compact encoding.
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal scalar:\n%w", err)
		}

		buf.Write(encoded)

		return nil
	}
}

// writeCanonicalObject writes an object with keys sorted ascending.
func writeCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	buf.WriteByte('{')

	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		encodedKey, err := json.Marshal(key)
		if err != nil {
			return fmt.Errorf("marshal key:\n%w", err)
		}

		buf.Write(encodedKey)
		buf.WriteByte(':')

		if err := writeCanonical(buf, obj[key]); err != nil {
			return err
		}
	}

	buf.WriteByte('}')

	return nil
}
