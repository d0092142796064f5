package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Columns is a JSON object keyed by column name. Unlike a map it keeps the
// column order, which decides the physical order of created tables.
type Columns []Column

func (c Columns) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Columns) UnmarshalJSON(data []byte) error {
	keys, values, err := orderedObject(data)
	if err != nil {
		return err
	}
	out := make(Columns, 0, len(keys))
	for i, k := range keys {
		var col Column
		if err := json.Unmarshal(values[i], &col); err != nil {
			return fmt.Errorf("column %q: %w", k, err)
		}
		if col.Name == "" {
			col.Name = k
		}
		out = append(out, col)
	}
	*c = out
	return nil
}

// orderedObject splits a JSON object into its keys and raw values in
// document order.
func orderedObject(data []byte) ([]string, []json.RawMessage, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected JSON object, got %v", tok)
	}
	var keys []string
	var values []json.RawMessage
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}
