package kvstore

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrEditorDone is returned when a batch is committed or applied a second time.
var ErrEditorDone = errors.New("editor already committed")

type mutation struct {
	key  string
	item *ValueItem // nil removes the key
}

// editor is the Store's batch. Mutations are held until Commit or Apply.
type editor struct {
	store *Store

	mu        sync.Mutex
	mutations []mutation
	clear     bool
	err       error
	done      atomic.Bool
}

func (e *editor) PutString(key string, value string) Editor {
	return e.record(key, NewStringItem(value, nowFunc()))
}

func (e *editor) PutNullableString(key string, value *string) Editor {
	if value == nil {
		return e.record(key, nil)
	}
	return e.PutString(key, *value)
}

func (e *editor) PutStringSet(key string, values *StringSet) Editor {
	if values == nil {
		return e.record(key, nil)
	}
	return e.record(key, NewStringSetItem(values, nowFunc()))
}

func (e *editor) PutInt(key string, value int) Editor {
	return e.PutString(key, FormatInt(value))
}

func (e *editor) PutInt64(key string, value int64) Editor {
	return e.PutString(key, FormatInt64(value))
}

func (e *editor) PutFloat32(key string, value float32) Editor {
	return e.PutString(key, FormatFloat32(value))
}

func (e *editor) PutBool(key string, value bool) Editor {
	return e.PutString(key, FormatBool(value))
}

func (e *editor) Remove(key string) Editor {
	return e.record(key, nil)
}

func (e *editor) Clear() Editor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clear = true
	return e
}

func (e *editor) Commit() error {
	return e.finish(true)
}

func (e *editor) Apply() error {
	return e.finish(false)
}

func (e *editor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *editor) record(key string, item *ValueItem) Editor {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e
	}
	e.mutations = append(e.mutations, mutation{key: key, item: item})
	return e
}

func (e *editor) finish(wait bool) error {
	if !e.done.CompareAndSwap(false, true) {
		return ErrEditorDone
	}
	e.mu.Lock()
	mutations, clear, err := e.mutations, e.clear, e.err
	e.mutations = nil
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return e.store.commit(mutations, clear, wait)
}
