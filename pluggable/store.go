// Package pluggable wraps a kvstore.Preferences so that every key and value passes
// through caller-supplied converters on its way in and out of the underlying store.
//
// Callers keep using the kvstore.Preferences contract and only ever see logical
// keys and values; the base store only ever sees the encoded (physical) form.
package pluggable

import (
	"sync"

	"github.com/jrsteele09/go-pluggable-store/kvstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrConfiguration is returned by New when a converter role or the base store is missing.
var ErrConfiguration = errors.New("pluggable store misconfigured")

// Store is a kvstore.Preferences that encodes keys and values before they reach the
// base store and decodes them on the way out. Change listeners registered on a Store
// receive the Store itself and the decoded key.
//
// Call Close when the Store is no longer needed. Without it, the listener adapters
// registered on the base store stay registered for as long as the base store lives.
type Store struct {
	base kvstore.Preferences

	keyEncoder   Converter
	keyDecoder   Converter
	valueEncoder Converter
	valueDecoder Converter

	onListenerError func(physicalKey string, err error)

	// getAllLock serializes GetAll against itself.
	getAllLock sync.Mutex

	// listenerLock guards adapters and closed.
	listenerLock sync.Mutex
	adapters     map[kvstore.OnChangeListener]*listenerAdapter
	closed       bool
}

var _ kvstore.Preferences = (*Store)(nil)

// New wraps base. All four converter roles must be set through options,
// otherwise New fails with ErrConfiguration without touching base.
func New(base kvstore.Preferences, options ...Option) (*Store, error) {
	s := &Store{
		base:     base,
		adapters: make(map[kvstore.OnChangeListener]*listenerAdapter),
	}
	for _, opt := range options {
		opt(s)
	}

	if base == nil {
		return nil, errors.Wrap(ErrConfiguration, "base store isn't defined")
	}
	if s.keyEncoder == nil {
		return nil, errors.Wrap(ErrConfiguration, "keyEncoder isn't defined")
	}
	if s.keyDecoder == nil {
		return nil, errors.Wrap(ErrConfiguration, "keyDecoder isn't defined")
	}
	if s.valueEncoder == nil {
		return nil, errors.Wrap(ErrConfiguration, "valueEncoder isn't defined")
	}
	if s.valueDecoder == nil {
		return nil, errors.Wrap(ErrConfiguration, "valueDecoder isn't defined")
	}
	if s.onListenerError == nil {
		s.onListenerError = logListenerError
	}
	return s, nil
}

// Base returns the wrapped store.
func (s *Store) Base() kvstore.Preferences {
	return s.base
}

// GetAll returns every entry of the base store with keys and values decoded.
// Null values stay null; set values are decoded element by element.
func (s *Store) GetAll() (kvstore.Entries, error) {
	s.getAllLock.Lock()
	defer s.getAllLock.Unlock()

	physical, err := s.base.GetAll()
	if err != nil {
		return kvstore.Entries{}, err
	}

	values := make(map[string]kvstore.Value, physical.Len())
	physical.Range(func(key string, value kvstore.Value) bool {
		var logicalKey string
		if logicalKey, err = s.keyDecoder.Convert(key); err != nil {
			return false
		}
		var decoded kvstore.Value
		if decoded, err = s.decodeValue(value); err != nil {
			return false
		}
		values[logicalKey] = decoded
		return true
	})
	if err != nil {
		return kvstore.Entries{}, err
	}
	return kvstore.NewEntries(values), nil
}

// LookupString returns the decoded string stored against key.
func (s *Store) LookupString(key string) (string, bool, error) {
	encodedKey, err := s.keyEncoder.Convert(key)
	if err != nil {
		return "", false, err
	}
	encoded, ok, err := s.base.LookupString(encodedKey)
	if err != nil || !ok {
		return "", false, err
	}
	value, err := s.valueDecoder.Convert(encoded)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// GetString returns the decoded string stored against key, or defValue as given.
func (s *Store) GetString(key string, defValue string) (string, error) {
	value, ok, err := s.LookupString(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return defValue, nil
	}
	return value, nil
}

// LookupStringSet returns the decoded set stored against key.
func (s *Store) LookupStringSet(key string) (*kvstore.StringSet, bool, error) {
	encodedKey, err := s.keyEncoder.Convert(key)
	if err != nil {
		return nil, false, err
	}
	encoded, ok, err := s.base.LookupStringSet(encodedKey)
	if err != nil || !ok {
		return nil, false, err
	}
	set, err := s.convertSet(s.valueDecoder, encoded)
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}

// GetStringSet returns the decoded set stored against key, or defValues itself when absent.
func (s *Store) GetStringSet(key string, defValues *kvstore.StringSet) (*kvstore.StringSet, error) {
	set, ok, err := s.LookupStringSet(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return defValues, nil
	}
	return set, nil
}

// GetInt parses the decoded string stored against key.
// A value that is present but does not parse yields a *kvstore.FormatError.
func (s *Store) GetInt(key string, defValue int) (int, error) {
	return kvstore.GetInt(s, key, defValue)
}

// GetInt64 parses the decoded string stored against key.
func (s *Store) GetInt64(key string, defValue int64) (int64, error) {
	return kvstore.GetInt64(s, key, defValue)
}

// GetFloat32 parses the decoded string stored against key.
func (s *Store) GetFloat32(key string, defValue float32) (float32, error) {
	return kvstore.GetFloat32(s, key, defValue)
}

// GetBool parses the decoded string stored against key.
func (s *Store) GetBool(key string, defValue bool) (bool, error) {
	return kvstore.GetBool(s, key, defValue)
}

// Contains reports whether the encoded key is present in the base store.
func (s *Store) Contains(key string) (bool, error) {
	encodedKey, err := s.keyEncoder.Convert(key)
	if err != nil {
		return false, err
	}
	return s.base.Contains(encodedKey)
}

// Edit returns a batch that encodes every mutation before handing it to a base store batch.
func (s *Store) Edit() kvstore.Editor {
	return &editor{store: s, base: s.base.Edit()}
}

func (s *Store) decodeValue(value kvstore.Value) (kvstore.Value, error) {
	switch value.Kind {
	case kvstore.StringKind:
		decoded, err := s.valueDecoder.Convert(value.Str)
		if err != nil {
			return kvstore.Value{}, err
		}
		return kvstore.StringValue(decoded), nil
	case kvstore.StringSetKind:
		set, err := s.convertSet(s.valueDecoder, value.Set)
		if err != nil {
			return kvstore.Value{}, err
		}
		return kvstore.StringSetValue(set), nil
	}
	return value, nil
}

// convertSet converts every element into a new set. Elements that convert to the
// same string collapse into one.
func (s *Store) convertSet(c Converter, set *kvstore.StringSet) (*kvstore.StringSet, error) {
	values := set.Values()
	converted := make([]string, 0, len(values))
	for _, v := range values {
		out, err := c.Convert(v)
		if err != nil {
			return nil, err
		}
		converted = append(converted, out)
	}
	return kvstore.NewStringSet(converted...), nil
}

func logListenerError(physicalKey string, err error) {
	log.Error().Str("physicalKey", physicalKey).Err(err).Msg("pluggable.Store: cannot decode changed key")
}
