package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Column is a named, ordered bucket of items sharing one grouping value.
type Column struct {
	Name  string
	Items []ProjectItem
}

// Columns is the ordered column list of a board. It serializes as a JSON
// object whose key order is the column order.
type Columns []Column

// Names returns the column names in order.
func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

// Get returns the items of the named column.
func (c Columns) Get(name string) ([]ProjectItem, bool) {
	for _, col := range c {
		if col.Name == name {
			return col.Items, true
		}
	}
	return nil, false
}

// Len returns the total number of items across all columns.
func (c Columns) Len() int {
	n := 0
	for _, col := range c {
		n += len(col.Items)
	}
	return n
}

// MarshalJSON writes the columns as an ordered JSON object.
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
		items := col.Items
		if items == nil {
			items = []ProjectItem{}
		}
		val, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("failed to encode column %q: %w", col.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order.
func (c *Columns) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("columns: expected JSON object")
	}

	out := Columns{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errors.New("columns: expected string key")
		}
		var items []ProjectItem
		if err := dec.Decode(&items); err != nil {
			return fmt.Errorf("columns: failed to decode %q: %w", name, err)
		}
		out = append(out, Column{Name: name, Items: items})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}
