package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordID(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		wantID int64
		wantOK bool
	}{
		{"int64", Record{"id": int64(7)}, 7, true},
		{"int", Record{"id": 3}, 3, true},
		{"integral float", Record{"id": float64(4)}, 4, true},
		{"json number", Record{"id": json.Number("12")}, 12, true},
		{"zero", Record{"id": int64(0)}, 0, true},
		{"missing", Record{"name": "x"}, 0, false},
		{"negative", Record{"id": int64(-1)}, 0, false},
		{"fractional", Record{"id": 1.5}, 0, false},
		{"string", Record{"id": "1"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := tt.record.ID()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	orig := Record{
		"id":   int64(1),
		"tags": []any{"a", "b"},
		"meta": map[string]any{"k": "v"},
	}
	cp := orig.Clone()
	cp["tags"].([]any)[0] = "changed"
	cp["meta"].(map[string]any)["k"] = "changed"
	cp["id"] = int64(2)

	assert.Equal(t, "a", orig["tags"].([]any)[0])
	assert.Equal(t, "v", orig["meta"].(map[string]any)["k"])
	assert.Equal(t, int64(1), orig["id"])
}

func TestNormalizeCanonicalTypes(t *testing.T) {
	rec, err := Normalize(map[string]any{
		"count":  3,
		"ratio":  float32(0.5),
		"whole":  2.0,
		"labels": []string{"x", "y"},
		"nested": map[string]int{"a": 1},
		"flag":   true,
		"none":   nil,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), rec["count"])
	assert.Equal(t, 0.5, rec["ratio"])
	assert.Equal(t, int64(2), rec["whole"])
	assert.Equal(t, []any{"x", "y"}, rec["labels"])
	assert.Equal(t, map[string]any{"a": int64(1)}, rec["nested"])
	assert.Equal(t, true, rec["flag"])
	assert.Nil(t, rec["none"])
}

func TestNormalizeRejectsUnencodable(t *testing.T) {
	_, err := Normalize(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestDecodeRecords(t *testing.T) {
	recs, err := DecodeRecords([]byte(`[{"id":1,"name":"Alpha"},{"id":2,"score":1.25}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1), recs[0]["id"])
	assert.Equal(t, 1.25, recs[1]["score"])

	_, err = DecodeRecords([]byte(`{"id":1}`))
	assert.Error(t, err, "object is not a collection")

	_, err = DecodeRecords([]byte(`[1, 2]`))
	assert.True(t, errors.Is(err, errNotObject))

	_, err = DecodeRecords([]byte(`[] []`))
	assert.Error(t, err, "trailing data")
}

func TestDecodeRecordRejectsNonObject(t *testing.T) {
	_, err := DecodeRecord([]byte(`"text"`))
	assert.ErrorIs(t, err, errNotObject)

	_, err = DecodeRecord([]byte(`{"id":1`))
	assert.Error(t, err)
}

func TestFilterMatch(t *testing.T) {
	rec := Record{
		"id":     int64(2),
		"status": "pending",
		"tags":   []any{"go", "cli"},
		"score":  float64(3),
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches", Filter{}, true},
		{"nil filter matches", nil, true},
		{"equal string", Filter{"status": "pending"}, true},
		{"different string", Filter{"status": "done"}, false},
		{"int matches integral float", Filter{"score": int64(3)}, true},
		{"list contains scalar", Filter{"tags": "go"}, true},
		{"list lacks scalar", Filter{"tags": "rust"}, false},
		{"list equals list", Filter{"tags": []any{"go", "cli"}}, true},
		{"missing field", Filter{"owner": "me"}, false},
		{"missing field nil filter", Filter{"owner": nil}, true},
		{"and semantics", Filter{"status": "pending", "id": int64(3)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(rec))
		})
	}
}
