package pandata

import "slices"

// Comparator orders two field values. It returns a negative number when a
// sorts before b, a positive number when after, and zero when equal.
// Missing fields are passed as Undefined.
type Comparator func(a, b any) int

// NumericComparator subtracts the two values after numeric coercion:
// missing and null count as 0, bools as 0 or 1, numeric strings as their
// value (decimal, "Infinity" or an unsigned 0x/0o/0b integer) and an array
// as the number its single element coerces to. Values that cannot be
// coerced compare equal to everything, so they keep their relative
// position.
func NumericComparator(a, b any) int {
	d := toNumber(a) - toNumber(b)
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	}
	return 0
}

// AllByKey finds every record matching a value on a fixed key.
type AllByKey struct {
	c   *Collection
	key string
}

// DelegateGetAllByKey binds key for repeated GetByKeyValue lookups. Each
// call reads the collection's contents at that moment.
func (c *Collection) DelegateGetAllByKey(key string) *AllByKey {
	return &AllByKey{c: c, key: key}
}

func (d *AllByKey) Key() string { return d.key }

func (d *AllByKey) Get(value any) []Record {
	return d.c.GetByKeyValue(d.key, value)
}

// FirstByKey finds the first record matching a value on a fixed key.
type FirstByKey struct {
	c   *Collection
	key string
}

// DelegateGetFirstByKey binds key for repeated first-match lookups.
func (c *Collection) DelegateGetFirstByKey(key string) *FirstByKey {
	return &FirstByKey{c: c, key: key}
}

func (d *FirstByKey) Key() string { return d.key }

// Get returns the first match, or nil when there is none.
func (d *FirstByKey) Get(value any) Record {
	r, ok := d.c.GetFirstByKeyValue(d.key, value)
	if !ok {
		return nil
	}
	return r
}

// SortedByKey returns sorted copies of the collection ordered by one key.
type SortedByKey struct {
	c   *Collection
	key string
	cmp Comparator
}

// SortOption configures a SortedByKey.
type SortOption func(*SortedByKey)

// WithComparator replaces NumericComparator.
func WithComparator(cmp Comparator) SortOption {
	return func(s *SortedByKey) {
		if cmp != nil {
			s.cmp = cmp
		}
	}
}

// DelegateAllByKeySorted binds key for repeated sorted snapshots.
func (c *Collection) DelegateAllByKeySorted(key string, opts ...SortOption) *SortedByKey {
	s := &SortedByKey{c: c, key: key, cmp: NumericComparator}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SortedByKey) Key() string { return s.key }

// Get returns a stably sorted shallow copy of the current records. Records
// that compare equal keep their collection order in both directions.
func (s *SortedByKey) Get(ascending bool) []Record {
	sorted := s.c.GetAll()
	slices.SortStableFunc(sorted, func(a, b Record) int {
		if ascending {
			return s.cmp(a.Field(s.key), b.Field(s.key))
		}
		return s.cmp(b.Field(s.key), a.Field(s.key))
	})
	return sorted
}

// Ascending is Get(true).
func (s *SortedByKey) Ascending() []Record { return s.Get(true) }

// Descending is Get(false).
func (s *SortedByKey) Descending() []Record { return s.Get(false) }
