// Package jsonutil decodes loosely typed JSON sent by form clients and CSV
// import tools, where attribute values arrive as strings, numbers or booleans.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexibleStringValue renders a scalar JSON value as a string.
// Null and empty input yield "". Objects and arrays are returned verbatim.
func FlexibleStringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}

	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := val.Float64(); err == nil {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return string(raw)
	}
}

// FlexibleStringMap decodes a JSON object whose values may be any scalar into
// a map of strings. Null members are dropped.
func FlexibleStringMap(data []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if string(bytes.TrimSpace(v)) == "null" {
			continue
		}
		out[k] = FlexibleStringValue(v)
	}
	return out, nil
}
