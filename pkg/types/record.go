package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// FieldID is the reserved field holding a record's identity.
const FieldID = "id"

// Record is one persisted entity: a mapping from field name to value. After
// Normalize or DecodeRecord, values are one of string, int64, float64, bool,
// nil, []any or map[string]any.
type Record map[string]any

// ID returns the record's id and whether it holds a non-negative integer.
func (r Record) ID() (int64, bool) {
	v, ok := r[FieldID]
	if !ok {
		return 0, false
	}
	id, ok := AsInt(v)
	if !ok || id < 0 {
		return 0, false
	}
	return id, true
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a canonical record value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = CloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = CloneValue(inner)
		}
		return s
	default:
		return v
	}
}

// AsInt reports the integer value of v when v is an integral number of any of
// the representations a Record may carry.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// Normalize converts caller-supplied field values into their canonical
// JSON-compatible representation by round-tripping them through encoding/json.
// Integers come back as int64 and other numbers as float64.
func Normalize(fields map[string]any) (Record, error) {
	if fields == nil {
		return Record{}, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}
	return DecodeRecord(data)
}

// NormalizeValue converts a single value the same way Normalize does.
func NormalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	return canonical(out), nil
}

var errNotObject = errors.New("record is not a JSON object")

// DecodeRecord parses a single JSON object into a Record with canonical value
// types.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after record")
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return Record(canonical(obj).(map[string]any)), nil
}

// DecodeRecords parses a JSON array of objects.
func DecodeRecords(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after collection")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.New("collection is not a JSON array")
	}
	records := make([]Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d: %w", i, errNotObject)
		}
		records = append(records, Record(canonical(obj).(map[string]any)))
	}
	return records, nil
}

// canonical replaces json.Number values with int64 or float64.
func canonical(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i
		}
		f, err := t.Float64()
		if err != nil {
			return string(t)
		}
		return f
	case map[string]any:
		for k, inner := range t {
			t[k] = canonical(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = canonical(inner)
		}
		return t
	default:
		return v
	}
}
