package spark

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// wireDecoder reads fields out of one JSON object. Getters never fail on
// their own; missing required fields and mistyped values are collected and
// reported together by err.
type wireDecoder struct {
	kind    Kind
	doc     map[string]json.RawMessage
	missing []string
	invalid []string
}

func newWireDecoder(kind Kind, body []byte) (*wireDecoder, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &ParseError{Kind: kind, Err: errors.New("empty body")}
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &ParseError{Kind: kind, Err: err}
	}
	if doc == nil {
		return nil, &ParseError{Kind: kind, Err: errors.New("body is not an object")}
	}
	return &wireDecoder{kind: kind, doc: doc}, nil
}

func (d *wireDecoder) raw(key string, required bool) (json.RawMessage, bool) {
	v, ok := d.doc[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		if required {
			d.missing = append(d.missing, key)
		}
		return nil, false
	}
	return v, true
}

func (d *wireDecoder) has(key string) bool {
	v, ok := d.doc[key]
	return ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func (d *wireDecoder) str(key string, required bool) string {
	v, ok := d.raw(key, required)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		d.invalid = append(d.invalid, key)
		return ""
	}
	if s == "" && required {
		d.missing = append(d.missing, key)
	}
	return s
}

func (d *wireDecoder) boolean(key string, required bool) bool {
	v, ok := d.raw(key, required)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		d.invalid = append(d.invalid, key)
		return false
	}
	return b
}

func (d *wireDecoder) strings(key string, required bool) []string {
	v, ok := d.raw(key, required)
	if !ok {
		return nil
	}
	var out []string
	if err := json.Unmarshal(v, &out); err != nil {
		d.invalid = append(d.invalid, key)
		return nil
	}
	return out
}

func (d *wireDecoder) time(key string, required bool) time.Time {
	s := d.str(key, required)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		d.invalid = append(d.invalid, key)
		return time.Time{}
	}
	return t
}

func (d *wireDecoder) err() error {
	if len(d.missing) == 0 && len(d.invalid) == 0 {
		return nil
	}
	return &ParseError{Kind: d.kind, Missing: d.missing, Invalid: d.invalid}
}

// decodeRecord decodes a full record for e and returns the identity fields
// plus the kind-specific apply closure. Nothing is assigned here.
func decodeRecord(c *Client, e Entity, body []byte) (id string, created time.Time, apply func(), err error) {
	d, err := newWireDecoder(e.Kind(), body)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	id = d.str("id", true)
	created = d.time("created", true)
	apply = e.decode(d, c)
	if err := d.err(); err != nil {
		return "", time.Time{}, nil, err
	}
	return id, created, apply, nil
}

// applyRecord assigns a decoded record to e and marks it loaded.
func applyRecord(e Entity, id string, created time.Time, apply func()) {
	o := e.object()
	o.mu.Lock()
	o.id = id
	o.created = created
	apply()
	o.mu.Unlock()
	o.loaded.Store(true)
}
