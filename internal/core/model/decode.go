package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	labelField    = "label"
	relationField = "relation"
	startField    = "start"
	endField      = "end"
)

// DecodeEntity classifies a raw record. Records with a "label" field are
// nodes, records with a "relation" field are relations, anything else is
// returned as an UnknownEntity.
func DecodeEntity(raw map[string]any) (Entity, error) {
	if _, ok := raw[labelField]; ok {
		return decodeNode(raw)
	}
	if rel, ok := raw[relationField]; ok {
		relType, ok := rel.(string)
		if !ok {
			return nil, fmt.Errorf("%w: relation type must be a string, got %T", ErrMalformedEntity, rel)
		}
		start, err := decodeEndpoint(raw[startField])
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		end, err := decodeEndpoint(raw[endField])
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		return &RelationEntity{Type: relType, Start: start, End: end}, nil
	}
	return &UnknownEntity{Raw: raw}, nil
}

func decodeNode(raw map[string]any) (*NodeEntity, error) {
	label, ok := raw[labelField].(string)
	if !ok {
		return nil, fmt.Errorf("%w: label must be a string, got %T", ErrMalformedEntity, raw[labelField])
	}
	attrs := make(map[string]any, len(raw)-1)
	for k, v := range raw {
		if k == labelField {
			continue
		}
		attrs[k] = normalizeNumber(v)
	}
	return &NodeEntity{Label: label, Attributes: attrs}, nil
}

func decodeEndpoint(v any) (*NodeEntity, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: endpoint must be an object, got %T", ErrMalformedEntity, v)
	}
	return decodeNode(m)
}

// DecodeEntities decodes a JSON object or array of objects.
func DecodeEntities(data []byte) ([]Entity, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raws []map[string]any
	if data[0] == '[' {
		if err := decodeJSON(data, &raws); err != nil {
			return nil, fmt.Errorf("failed to decode entity list: %w", err)
		}
	} else {
		var raw map[string]any
		if err := decodeJSON(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode entity: %w", err)
		}
		raws = append(raws, raw)
	}

	entities := make([]Entity, 0, len(raws))
	for i, raw := range raws {
		e, err := DecodeEntity(raw)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// decodeJSON keeps numbers as json.Number so integer keys survive unchanged.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
