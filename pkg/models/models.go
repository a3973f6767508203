package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RecordID is the stable external identifier used as the checkpoint key
type RecordID string

type Field struct {
	Name  string
	Value string
}

// Record is the payload of one harvested entity. Field order is the order in
// which the source extracted them and survives a JSON round trip.
type Record []Field

// Snapshot maps every harvested RecordID to its payload
type Snapshot map[RecordID]Record

// Get returns the value stored under name
func (r Record) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the value of an existing field or appends a new one
func (r *Record) Set(name, value string) {
	for i := range *r {
		if (*r)[i].Name == name {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Field{Name: name, Value: value})
}

// Clone returns an independent copy
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	copy(out, r)
	return out
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	out := bytes.NewBufferString("{")
	for i, f := range r {
		if i > 0 {
			out.WriteByte(',')
		}
		for j, s := range []string{f.Name, f.Value} {
			buf.Reset()
			if err := enc.Encode(s); err != nil {
				return nil, err
			}
			out.Write(bytes.TrimRight(buf.Bytes(), "\n"))
			if j == 0 {
				out.WriteByte(':')
			}
		}
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object, got %v", tok)
	}

	rec := make(Record, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected record key %v", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		val, ok := valTok.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string, got %T", key, valTok)
		}
		rec.Set(key, val)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = rec
	return nil
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, rec := range s {
		out[id] = rec.Clone()
	}
	return out
}
