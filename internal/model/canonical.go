package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MarshalMeta serializes a meta map to canonical JSON TEXT for storage.
// A nil or empty map encodes as "{}".
func MarshalMeta(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := MarshalCanonical(meta)
	if err != nil {
		return "", fmt.Errorf("marshal meta: %w", err)
	}
	return string(data), nil
}

// MarshalCanonical serializes v to canonical JSON.
//
// Keys are sorted, strings (keys and values) are NFC normalized and HTML
// escaping is disabled, so equal values always produce equal bytes.
// Supported values are nil, booleans, numbers, strings, []string, []any
// and map[string]any, nested arbitrarily.
func MarshalCanonical(v any) ([]byte, error) {
	normalized, err := canonicalValue(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// UnmarshalMeta parses meta JSON TEXT. Numbers decode as json.Number so
// large integers survive the round trip.
func UnmarshalMeta(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var meta map[string]any
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return meta, nil
}

func canonicalValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val, nil
	case string:
		return norm.NFC.String(val), nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			c, err := canonicalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	case []string:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = norm.NFC.String(elem)
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			c, err := canonicalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			key := norm.NFC.String(k)
			if _, dup := out[key]; dup {
				return nil, fmt.Errorf("duplicate key %q after normalization", key)
			}
			out[key] = c
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported meta value type %T", v)
	}
}
