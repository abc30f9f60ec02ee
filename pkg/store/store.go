// Package store persists the provider's records. Every backend assigns
// integer ids that are unique and increasing for the lifetime of the store,
// and every backend serializes its mutations, so concurrent appends never
// hand out the same id.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Record is a stored set of fields plus its assigned id. On the wire and on
// disk it is one flat JSON object: {"id": 1, "name": ...}.
type Record struct {
	ID     int
	Fields map[string]interface{}
}

// Store is the record store contract shared by every backend.
type Store interface {
	// List returns every record in id order.
	List(ctx context.Context) ([]Record, error)
	// Append stores fields under a fresh id and returns the id.
	Append(ctx context.Context, fields map[string]interface{}) (int, error)
	// Get returns the record with id, or a record-not-found error.
	Get(ctx context.Context, id int) (Record, error)
	// Close releases the backend.
	Close() error
}

// MarshalJSON writes the id first, then the fields in key order.
func (r Record) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"id":%d`, r.ID)
	for _, k := range keys {
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.Fields[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat object and lifts "id" out of the fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	id, ok := raw["id"].(json.Number)
	if !ok {
		return fmt.Errorf("record has no numeric id")
	}
	n, err := id.Int64()
	if err != nil {
		return fmt.Errorf("record id %q: %w", id, err)
	}
	delete(raw, "id")

	r.ID = int(n)
	r.Fields = normalizeNumbers(raw)
	return nil
}

// normalizeNumbers turns json.Number values back into float64 so decoded
// fields compare equal to freshly unmarshalled ones.
func normalizeNumbers(fields map[string]interface{}) map[string]interface{} {
	for k, v := range fields {
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				fields[k] = f
			}
		}
	}
	return fields
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if k != "id" {
			out[k] = v
		}
	}
	return out
}

func sortByID(records []Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}
