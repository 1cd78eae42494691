package pluggable

import (
	"sync"

	"github.com/jrsteele09/go-pluggable-store/kvstore"
)

// editor encodes each mutation as it is recorded and forwards it to the base batch.
//
// A chained call cannot return an error, so the first conversion failure is kept:
// later mutations are dropped and Commit/Apply return that error without touching the base.
type editor struct {
	store *Store
	base  kvstore.Editor

	mu  sync.Mutex
	err error
}

var _ kvstore.Editor = (*editor)(nil)

func (e *editor) PutString(key string, value string) kvstore.Editor {
	return e.PutNullableString(key, &value)
}

// PutNullableString forwards a nil value unencoded.
func (e *editor) PutNullableString(key string, value *string) kvstore.Editor {
	e.forward(key, func(encodedKey string) error {
		if value == nil {
			e.base.PutNullableString(encodedKey, nil)
			return nil
		}
		encoded, err := e.store.valueEncoder.Convert(*value)
		if err != nil {
			return err
		}
		e.base.PutString(encodedKey, encoded)
		return nil
	})
	return e
}

// PutStringSet encodes every element into a new set; a nil set is forwarded as nil.
// An encoder that maps two values to the same string stores a single element for both.
func (e *editor) PutStringSet(key string, values *kvstore.StringSet) kvstore.Editor {
	e.forward(key, func(encodedKey string) error {
		if values == nil {
			e.base.PutStringSet(encodedKey, nil)
			return nil
		}
		encoded, err := e.store.convertSet(e.store.valueEncoder, values)
		if err != nil {
			return err
		}
		e.base.PutStringSet(encodedKey, encoded)
		return nil
	})
	return e
}

func (e *editor) PutInt(key string, value int) kvstore.Editor {
	return e.PutString(key, kvstore.FormatInt(value))
}

func (e *editor) PutInt64(key string, value int64) kvstore.Editor {
	return e.PutString(key, kvstore.FormatInt64(value))
}

func (e *editor) PutFloat32(key string, value float32) kvstore.Editor {
	return e.PutString(key, kvstore.FormatFloat32(value))
}

func (e *editor) PutBool(key string, value bool) kvstore.Editor {
	return e.PutString(key, kvstore.FormatBool(value))
}

func (e *editor) Remove(key string) kvstore.Editor {
	e.forward(key, func(encodedKey string) error {
		e.base.Remove(encodedKey)
		return nil
	})
	return e
}

// Clear is forwarded as is and clears every physical entry.
func (e *editor) Clear() kvstore.Editor {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil {
		e.base.Clear()
	}
	return e
}

func (e *editor) Commit() error {
	if err := e.Err(); err != nil {
		return err
	}
	return e.base.Commit()
}

func (e *editor) Apply() error {
	if err := e.Err(); err != nil {
		return err
	}
	return e.base.Apply()
}

// Err returns the first conversion error, or the base batch's own error.
func (e *editor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	return e.base.Err()
}

// forward encodes key and runs fn with the result, unless an earlier call failed.
func (e *editor) forward(key string, fn func(encodedKey string) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return
	}
	encodedKey, err := e.store.keyEncoder.Convert(key)
	if err != nil {
		e.err = err
		return
	}
	e.err = fn(encodedKey)
}
