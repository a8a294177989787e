package pandata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// Collection is an ordered, in-memory list of records loaded from JSON.
//
// A Collection does no locking. Callers sharing one between goroutines
// must serialize access themselves.
type Collection struct {
	items []Record
}

// New returns an empty collection.
func New() *Collection {
	return &Collection{items: []Record{}}
}

// NewWithRecords returns a collection holding records in the given order.
// The slice is copied; the record maps are not.
func NewWithRecords(records []Record) *Collection {
	c := New()
	c.items = append(c.items, records...)
	return c
}

// Clear discards every record.
func (c *Collection) Clear() *Collection {
	c.items = []Record{}
	return c
}

// LoadJSON replaces the contents of the collection with the array of
// objects stored in the file at path. On error the collection is left
// untouched and the error is an *IOError, *ParseError or *ShapeError.
func (c *Collection) LoadJSON(path string) (*Collection, error) {
	return c.LoadJSONContext(context.Background(), path)
}

// LoadJSONContext is LoadJSON with a context that is checked before the
// read and again before the contents are swapped.
func (c *Collection) LoadJSONContext(ctx context.Context, path string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}

	records, err := decodeRecords(path, data)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	c.items = records
	return c, nil
}

// LoadJSONReader is LoadJSON for an already opened source.
func (c *Collection) LoadJSONReader(r io.Reader) (*Collection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &IOError{Path: "<reader>", Err: err}
	}

	records, err := decodeRecords("<reader>", data)
	if err != nil {
		return nil, err
	}

	c.items = records
	return c, nil
}

func decodeRecords(path string, data []byte) ([]Record, error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		offset := int64(-1)
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			offset = syntaxErr.Offset
		}
		return nil, &ParseError{Path: path, Offset: offset, Err: err}
	}

	elems, ok := root.([]any)
	if !ok {
		return nil, &ShapeError{Path: path, Index: -1, Kind: kindOf(root)}
	}

	records := make([]Record, 0, len(elems))
	for i, elem := range elems {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, &ShapeError{Path: path, Index: i, Kind: kindOf(elem)}
		}
		records = append(records, Record(obj))
	}

	return records, nil
}

// GetAll returns the records in order. The returned slice is a copy, so
// reordering or appending to it does not affect the collection, but the
// record maps are shared.
func (c *Collection) GetAll() []Record {
	return slices.Clone(c.items)
}

// Len returns the number of records.
func (c *Collection) Len() int {
	return len(c.items)
}

// Keys returns the sorted union of top-level field names.
func (c *Collection) Keys() []string {
	seen := make(map[string]struct{})
	for _, r := range c.items {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	var keys []string
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// GetByKeyValue returns every record whose key field strictly equals value,
// in collection order. The result is empty, never nil, when nothing matches.
func (c *Collection) GetByKeyValue(key string, value any) []Record {
	matches := []Record{}
	for _, r := range c.items {
		if StrictEqual(r.Field(key), value) {
			matches = append(matches, r)
		}
	}
	return matches
}

// GetFirstByKeyValue returns the first record whose key field strictly
// equals value.
func (c *Collection) GetFirstByKeyValue(key string, value any) (Record, bool) {
	i := slices.IndexFunc(c.items, func(r Record) bool {
		return StrictEqual(r.Field(key), value)
	})
	if i < 0 {
		return nil, false
	}
	return c.items[i], true
}

// RemoveByKeyValue drops every record whose key field strictly equals
// value and reports how many were removed.
func (c *Collection) RemoveByKeyValue(key string, value any) int {
	kept := make([]Record, 0, len(c.items))
	for _, r := range c.items {
		if !StrictEqual(r.Field(key), value) {
			kept = append(kept, r)
		}
	}
	removed := len(c.items) - len(kept)
	c.items = kept
	return removed
}

// Bubble calls fn once per record in order. The records passed to fn are
// the collection's own maps.
func (c *Collection) Bubble(fn func(Record)) {
	for _, r := range c.items {
		fn(r)
	}
}
