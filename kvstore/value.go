package kvstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ValueKind identifies the shape of a stored value.
type ValueKind int

const (
	// NullKind is a key that is present with no value.
	NullKind ValueKind = iota
	// StringKind is a single text value.
	StringKind
	// StringSetKind is a set of text values.
	StringSetKind
)

func (k ValueKind) String() string {
	switch k {
	case NullKind:
		return "null"
	case StringKind:
		return "string"
	case StringSetKind:
		return "stringSet"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// StringSet is an immutable set of strings.
// A nil *StringSet stands for an absent set.
type StringSet struct {
	items map[string]struct{}
}

// NewStringSet builds a set from values. Duplicates collapse into one element.
func NewStringSet(values ...string) *StringSet {
	s := &StringSet{items: make(map[string]struct{}, len(values))}
	for _, v := range values {
		s.items[v] = struct{}{}
	}
	return s
}

// Contains reports whether v is in the set.
func (s *StringSet) Contains(v string) bool {
	if s == nil {
		return false
	}
	_, ok := s.items[v]
	return ok
}

// Len returns the number of elements.
func (s *StringSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Values returns the elements in sorted order. The slice is a copy.
func (s *StringSet) Values() []string {
	if s == nil {
		return nil
	}
	values := make([]string, 0, len(s.items))
	for v := range s.items {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Value is a read-only view of a stored value as returned by GetAll.
type Value struct {
	Kind ValueKind
	Str  string
	Set  *StringSet
}

// StringValue wraps a text value.
func StringValue(s string) Value {
	return Value{Kind: StringKind, Str: s}
}

// StringSetValue wraps a set value. A nil set yields a null value.
func StringSetValue(set *StringSet) Value {
	if set == nil {
		return Value{Kind: NullKind}
	}
	return Value{Kind: StringSetKind, Set: set}
}

// IsNull reports whether the value carries no data.
func (v Value) IsNull() bool {
	return v.Kind == NullKind
}

// Entries is an immutable snapshot of every key/value pair in a store.
type Entries struct {
	values map[string]Value
}

// NewEntries takes ownership of values; callers must not modify the map afterwards.
func NewEntries(values map[string]Value) Entries {
	if values == nil {
		values = make(map[string]Value)
	}
	return Entries{values: values}
}

// Len returns the number of entries.
func (e Entries) Len() int {
	return len(e.values)
}

// Get returns the value stored against key.
func (e Entries) Get(key string) (Value, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Keys returns all keys in sorted order.
func (e Entries) Keys() []string {
	keys := make([]string, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Range calls fn for every entry until fn returns false.
func (e Entries) Range(fn func(key string, value Value) bool) {
	for k, v := range e.values {
		if !fn(k, v) {
			return
		}
	}
}

// ValueItem represents the value associated with a key.
// The data can be in a loaded or unloaded state, which indicates whether it's in memory.
// Unloaded data will be reloaded when accessed.
type ValueItem struct {
	Kind       ValueKind  `json:"kind"`
	Data       string     `json:"-"`
	Set        *StringSet `json:"-"`
	Ts         time.Time  `json:"timestamp"`
	dataLoaded bool       `json:"-"`
}

// NewStringItem initializes a new string ValueItem with a given timestamp.
func NewStringItem(data string, ts time.Time) *ValueItem {
	return &ValueItem{
		Kind:       StringKind,
		Data:       data,
		Ts:         ts,
		dataLoaded: true,
	}
}

// NewStringSetItem initializes a new set ValueItem with a given timestamp.
func NewStringSetItem(set *StringSet, ts time.Time) *ValueItem {
	return &ValueItem{
		Kind:       StringSetKind,
		Set:        set,
		Ts:         ts,
		dataLoaded: true,
	}
}

// Loaded reports whether the item's data is held in memory.
func (item *ValueItem) Loaded() bool {
	return item.dataLoaded
}

// Value returns the read-only view of the item's data.
func (item *ValueItem) Value() Value {
	switch item.Kind {
	case StringKind:
		return StringValue(item.Data)
	case StringSetKind:
		return StringSetValue(item.Set)
	}
	return Value{Kind: NullKind}
}

// MarshalData returns the payload persisted alongside the item's metadata.
// Strings are stored raw, sets as a JSON array.
func (item *ValueItem) MarshalData() ([]byte, error) {
	switch item.Kind {
	case StringKind:
		return []byte(item.Data), nil
	case StringSetKind:
		return json.Marshal(item.Set.Values())
	}
	return nil, nil
}

// SetData restores the item's data from a persisted payload.
func (item *ValueItem) SetData(dataBytes []byte) error {
	switch item.Kind {
	case StringKind:
		item.Data = string(dataBytes)
	case StringSetKind:
		var values []string
		if err := json.Unmarshal(dataBytes, &values); err != nil {
			return fmt.Errorf("ValueItem.SetData json.Unmarshal: %w", err)
		}
		item.Set = NewStringSet(values...)
	}
	item.dataLoaded = true
	return nil
}

// unload checks if a ValueItem should be unloaded based on a duration.
func (item *ValueItem) unload(now time.Time, unloadAfter time.Duration) bool {
	if unloadAfter == 0 || !item.dataLoaded {
		return false
	}
	return now.Sub(item.Ts) > unloadAfter
}

// unloaded returns a copy of the item holding only its metadata.
// Items are never modified once stored, so readers may keep the old pointer.
func (item *ValueItem) unloaded() *ValueItem {
	return &ValueItem{Kind: item.Kind, Ts: item.Ts}
}
