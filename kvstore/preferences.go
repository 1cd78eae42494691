package kvstore

import (
	"errors"
	"reflect"
)

// ErrListenerNotComparable is returned when a listener cannot be tracked by identity.
// Use a pointer type, such as the *Listener returned by NewListener.
var ErrListenerNotComparable = errors.New("listener type is not comparable")

// Preferences is the key-value store contract shared by Store and any layer wrapping it.
// Values are text or sets of text. Typed getters parse the text form.
type Preferences interface {
	// GetAll returns an immutable snapshot of every entry.
	GetAll() (Entries, error)

	// LookupString returns the string stored against key and whether it was present.
	LookupString(key string) (string, bool, error)
	// GetString returns the string stored against key, or defValue when absent.
	GetString(key string, defValue string) (string, error)

	// LookupStringSet returns the set stored against key and whether it was present.
	LookupStringSet(key string) (*StringSet, bool, error)
	// GetStringSet returns the set stored against key, or defValues when absent.
	GetStringSet(key string, defValues *StringSet) (*StringSet, error)

	GetInt(key string, defValue int) (int, error)
	GetInt64(key string, defValue int64) (int64, error)
	GetFloat32(key string, defValue float32) (float32, error)
	GetBool(key string, defValue bool) (bool, error)

	// Contains reports whether key is present.
	Contains(key string) (bool, error)

	// Edit starts a new mutation batch.
	Edit() Editor

	// RegisterOnChangeListener adds l to the listeners notified after each change.
	// Listeners are tracked by identity; registering the same listener twice has no effect.
	RegisterOnChangeListener(l OnChangeListener) error
	// UnregisterOnChangeListener removes l. Unknown listeners are ignored.
	UnregisterOnChangeListener(l OnChangeListener)
}

// Editor records a batch of mutations that is applied by Commit or Apply.
// Every recording method returns the Editor so calls can be chained.
type Editor interface {
	PutString(key string, value string) Editor
	// PutNullableString stores value, or removes key when value is nil.
	PutNullableString(key string, value *string) Editor
	// PutStringSet stores values, or removes key when values is nil.
	PutStringSet(key string, values *StringSet) Editor
	PutInt(key string, value int) Editor
	PutInt64(key string, value int64) Editor
	PutFloat32(key string, value float32) Editor
	PutBool(key string, value bool) Editor
	Remove(key string) Editor
	// Clear removes every entry in the store, not only keys touched by this batch.
	Clear() Editor

	// Commit applies the batch and waits until it is persisted.
	Commit() error
	// Apply applies the batch and persists it in the background.
	// The returned error only covers failures detected before hand-off.
	Apply() error
	// Err returns the first error recorded while building the batch.
	Err() error
}

// OnChangeListener is notified with the key of every changed entry.
type OnChangeListener interface {
	OnPreferenceChanged(p Preferences, key string)
}

// Listener adapts a function to an OnChangeListener. Its identity is its address.
type Listener struct {
	fn func(p Preferences, key string)
}

// NewListener returns a listener calling fn.
func NewListener(fn func(p Preferences, key string)) *Listener {
	return &Listener{fn: fn}
}

// OnPreferenceChanged calls the wrapped function.
func (l *Listener) OnPreferenceChanged(p Preferences, key string) {
	l.fn(p, key)
}

// ListenerComparable reports whether l can be used as an identity key.
func ListenerComparable(l OnChangeListener) bool {
	if l == nil {
		return false
	}
	return reflect.TypeOf(l).Comparable()
}
