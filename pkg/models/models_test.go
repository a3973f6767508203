package models

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordKeepsFieldOrder(t *testing.T) {
	rec := Record{
		{Name: "Name", Value: "Acme <Medical> & Co"},
		{Name: "Country", Value: "Österreich"},
		{Name: "Actor ID/SRN", Value: "AT-MF-000000001"},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	require.NoError(t, enc.Encode(rec))
	data := bytes.TrimSpace(buf.Bytes())
	assert.Equal(t, `{"Name":"Acme <Medical> & Co","Country":"Österreich","Actor ID/SRN":"AT-MF-000000001"}`, string(data))

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec, decoded)
}

func TestRecordUnmarshalRejectsNonStrings(t *testing.T) {
	var rec Record
	assert.Error(t, json.Unmarshal([]byte(`{"count": 3}`), &rec))
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &rec))
}

func TestRecordSetAndGet(t *testing.T) {
	var rec Record
	rec.Set("a", "1")
	rec.Set("b", "2")
	rec.Set("a", "3")

	v, ok := rec.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	assert.Len(t, rec, 2)

	_, ok = rec.Get("missing")
	assert.False(t, ok)
}

func TestSnapshotIndentedRoundTrip(t *testing.T) {
	snap := Snapshot{
		"B-1": {{Name: "z", Value: "last"}, {Name: "a", Value: "first"}},
		"A-1": {{Name: "Email", Value: "x@example.com"}},
	}

	data, err := json.MarshalIndent(snap, "", "    ")
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, snap, decoded)

	clone := snap.Clone()
	clone["A-1"][0].Value = "changed"
	assert.Equal(t, "x@example.com", snap["A-1"][0].Value)
}
