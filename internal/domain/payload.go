package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PayloadKind is the explicit tag carried on the wire for duck-typed payloads.
type PayloadKind string

const (
	PayloadText PayloadKind = "text"
	PayloadJSON PayloadKind = "json"
)

// Payload is the opaque data carried by events and breakpoints. It is either
// plain text or an arbitrary JSON value; the core passes it through without
// interpreting it.
type Payload struct {
	Kind PayloadKind
	Text string
	JSON json.RawMessage
}

// TextPayload builds a text payload.
func TextPayload(s string) *Payload {
	return &Payload{Kind: PayloadText, Text: s}
}

// JSONPayload builds a json payload from raw bytes.
func JSONPayload(raw json.RawMessage) *Payload {
	return &Payload{Kind: PayloadJSON, JSON: raw}
}

type payloadWire struct {
	Kind  PayloadKind     `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the payload as {"kind":..., "value":...}.
func (p *Payload) MarshalJSON() ([]byte, error) {
	w := payloadWire{Kind: p.Kind}
	switch p.Kind {
	case PayloadText:
		v, err := json.Marshal(p.Text)
		if err != nil {
			return nil, err
		}
		w.Value = v
	case PayloadJSON:
		if len(p.JSON) == 0 {
			w.Value = json.RawMessage("null")
		} else {
			w.Value = p.JSON
		}
	default:
		return nil, fmt.Errorf("unknown payload kind %q", p.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a tagged payload.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var w payloadWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case PayloadText:
		if err := json.Unmarshal(w.Value, &p.Text); err != nil {
			return fmt.Errorf("text payload value: %w", err)
		}
	case PayloadJSON:
		p.JSON = w.Value
	default:
		return fmt.Errorf("unknown payload kind %q", w.Kind)
	}
	p.Kind = w.Kind
	return nil
}

// Equal reports whether two payloads carry the same data. Nil payloads are
// equal to each other only.
func (p *Payload) Equal(o *Payload) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Kind != o.Kind {
		return false
	}
	if p.Kind == PayloadText {
		return p.Text == o.Text
	}
	return bytes.Equal(compactJSON(p.JSON), compactJSON(o.JSON))
}

// Clone returns a deep copy, or nil for a nil payload.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	c := &Payload{Kind: p.Kind, Text: p.Text}
	if p.JSON != nil {
		c.JSON = append(json.RawMessage(nil), p.JSON...)
	}
	return c
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
