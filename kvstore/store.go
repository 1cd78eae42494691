package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var nowFunc = time.Now

// Error definitions for common error cases.
var (
	// ErrNotFound returned when a persisted key cannot be reloaded.
	ErrNotFound = errors.New("key not found")

	// ErrTypeMismatch returned when a key is read as a type other than the one stored.
	ErrTypeMismatch = errors.New("value has a different type")

	// ErrClosed returned when the store has been closed.
	ErrClosed = errors.New("store closed")
)

const defaultWriteBufferSize = 64

// Store represents the key-value storage system.
// It is thread-safe and allows for optional data persistence.
// Store implements Preferences.
type Store struct {
	data            map[string]*ValueItem
	persistence     []DataPersister
	evictionFreq    time.Duration
	unloadAfterTime time.Duration
	writeBufferSize uint
	lock            sync.RWMutex
	ctx             context.Context
	cancelFunc      context.CancelFunc
	wg              sync.WaitGroup

	listenerLock sync.Mutex
	listeners    map[OnChangeListener]struct{}

	// writeLock guards sends on writes against Close closing the channel.
	writeLock sync.RWMutex
	writes    chan writeCommand
	writerWg  sync.WaitGroup
	closed    atomic.Bool
}

var _ Preferences = (*Store)(nil)

// New initializes a new Store with optional configurations.
// It takes a variadic number of StoreOption functions to customize its behavior.
func New(options ...StoreOption) (*Store, error) {
	store := &Store{
		data:            make(map[string]*ValueItem),
		persistence:     make([]DataPersister, 0),
		evictionFreq:    time.Minute,
		unloadAfterTime: 0,
		writeBufferSize: defaultWriteBufferSize,
		listeners:       make(map[OnChangeListener]struct{}),
	}

	for _, opt := range options {
		opt(store)
	}

	if err := store.initPersistence(); err != nil {
		return nil, err
	}
	store.writes = make(chan writeCommand, store.writeBufferSize)
	store.writerWg.Add(1)
	go store.writeQueue()

	store.ctx, store.cancelFunc = context.WithCancel(context.Background())
	store.wg.Add(1)
	go store.evictionController()
	return store, nil
}

// Close stops the internal cache management routines, waits for queued writes
// and closes all persistence layers. Close is safe to call more than once.
func (s *Store) Close() {
	s.writeLock.Lock()
	if s.closed.Swap(true) {
		s.writeLock.Unlock()
		return
	}
	close(s.writes)
	s.writeLock.Unlock()

	s.cancelFunc()
	s.wg.Wait()
	s.writerWg.Wait()

	// Close all persistence layers
	for _, p := range s.persistence {
		p.Close()
	}
}

// GetAll returns a snapshot of every entry, reloading unloaded values from persistence.
// Unloaded values are read back under the read lock, so commits cannot interleave with the snapshot.
func (s *Store) GetAll() (Entries, error) {
	type reload struct{ stale, loaded *ValueItem }
	values := make(map[string]Value)
	var reloaded map[string]reload

	s.lock.RLock()
	for k, mv := range s.data {
		if mv.dataLoaded {
			values[k] = mv.Value()
			continue
		}
		loaded, err := s.readFromFirstStore(k)
		if err != nil {
			s.lock.RUnlock()
			return Entries{}, fmt.Errorf("Store.GetAll s.readFromFirstStore: %w", err)
		}
		values[k] = loaded.Value()
		if reloaded == nil {
			reloaded = make(map[string]reload)
		}
		reloaded[k] = reload{stale: mv, loaded: loaded}
	}
	s.lock.RUnlock()

	for k, r := range reloaded {
		s.cacheReloaded(k, r.stale, r.loaded)
	}
	return NewEntries(values), nil
}

// LookupString returns the string stored against key.
func (s *Store) LookupString(key string) (string, bool, error) {
	mv, err := s.get(key)
	if err != nil || mv == nil {
		return "", false, err
	}
	if mv.Kind != StringKind {
		return "", false, fmt.Errorf("Store.LookupString key %q holds %s: %w", key, mv.Kind, ErrTypeMismatch)
	}
	return mv.Data, true, nil
}

// GetString returns the string stored against key, or defValue.
func (s *Store) GetString(key string, defValue string) (string, error) {
	v, ok, err := s.LookupString(key)
	if err != nil || !ok {
		return defValue, err
	}
	return v, nil
}

// LookupStringSet returns the set stored against key.
func (s *Store) LookupStringSet(key string) (*StringSet, bool, error) {
	mv, err := s.get(key)
	if err != nil || mv == nil {
		return nil, false, err
	}
	if mv.Kind != StringSetKind {
		return nil, false, fmt.Errorf("Store.LookupStringSet key %q holds %s: %w", key, mv.Kind, ErrTypeMismatch)
	}
	return mv.Set, true, nil
}

// GetStringSet returns the set stored against key, or defValues.
func (s *Store) GetStringSet(key string, defValues *StringSet) (*StringSet, error) {
	v, ok, err := s.LookupStringSet(key)
	if err != nil || !ok {
		return defValues, err
	}
	return v, nil
}

// GetInt returns the int stored against key, or defValue.
func (s *Store) GetInt(key string, defValue int) (int, error) {
	return GetInt(s, key, defValue)
}

// GetInt64 returns the int64 stored against key, or defValue.
func (s *Store) GetInt64(key string, defValue int64) (int64, error) {
	return GetInt64(s, key, defValue)
}

// GetFloat32 returns the float32 stored against key, or defValue.
func (s *Store) GetFloat32(key string, defValue float32) (float32, error) {
	return GetFloat32(s, key, defValue)
}

// GetBool returns the bool stored against key, or defValue.
func (s *Store) GetBool(key string, defValue bool) (bool, error) {
	return GetBool(s, key, defValue)
}

// Contains checks whether key is present.
func (s *Store) Contains(key string) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

// InMemory checks if the value for a given key is loaded into memory.
func (s *Store) InMemory(key string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if _, ok := s.data[key]; !ok {
		return false
	}
	return s.data[key].dataLoaded
}

// Keys returns a slice of all keys currently in the Store.
func (s *Store) Keys() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Edit starts a new mutation batch against the store.
func (s *Store) Edit() Editor {
	return &editor{store: s}
}

// RegisterOnChangeListener adds l to the set of listeners notified on change.
func (s *Store) RegisterOnChangeListener(l OnChangeListener) error {
	if !ListenerComparable(l) {
		return ErrListenerNotComparable
	}
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	s.listeners[l] = struct{}{}
	return nil
}

// UnregisterOnChangeListener removes l from the set of listeners.
func (s *Store) UnregisterOnChangeListener(l OnChangeListener) {
	if !ListenerComparable(l) {
		return
	}
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	delete(s.listeners, l)
}

// get returns the item stored against key with its data loaded, or nil if absent.
func (s *Store) get(key string) (*ValueItem, error) {
	s.lock.RLock()
	mv, ok := s.data[key]
	if !ok || mv.dataLoaded {
		s.lock.RUnlock()
		return mv, nil
	}
	loaded, err := s.readFromFirstStore(key)
	s.lock.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("Store.get s.readFromFirstStore: %w", err)
	}

	s.cacheReloaded(key, mv, loaded)
	return loaded, nil
}

// readFromFirstStore must be called with s.lock held for reading.
func (s *Store) readFromFirstStore(key string) (*ValueItem, error) {
	if len(s.persistence) == 0 {
		return nil, ErrNotFound
	}
	return s.persistence[0].Read(key, true)
}

// cacheReloaded puts loaded back in memory unless key changed since stale was read.
func (s *Store) cacheReloaded(key string, stale, loaded *ValueItem) {
	s.lock.Lock()
	if s.data[key] == stale {
		s.data[key] = loaded
	}
	s.lock.Unlock()
}

func (s *Store) initPersistence() error {
	if len(s.persistence) == 0 {
		return nil
	}

	keys, err := s.persistence[0].Keys()
	if err != nil {
		log.Info().Msgf("store.initPersistence %s", err.Error())
		return nil
	}

	for _, k := range keys {
		mv, err := s.persistence[0].Read(k, false)
		if err != nil {
			log.Warn().Str("key", k).Err(err).Msg("store.initPersistence: skipping unreadable key")
			continue
		}
		s.data[k] = mv
	}

	return nil
}

// notify delivers one notification per changed key to a snapshot of the listeners.
func (s *Store) notify(keys []string) {
	if len(keys) == 0 {
		return
	}
	s.listenerLock.Lock()
	listeners := make([]OnChangeListener, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenerLock.Unlock()

	for _, k := range keys {
		for _, l := range listeners {
			l.OnPreferenceChanged(s, k)
		}
	}
}

func (s *Store) evictionController() {
	defer s.wg.Done()
	if s.evictionFreq <= 0 {
		return
	}

	timer := time.NewTimer(s.evictionFreq)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			s.runEvictionCheck()
			timer.Reset(s.evictionFreq)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Store) runEvictionCheck() {
	if len(s.persistence) == 0 {
		return
	}

	s.lock.RLock()
	timeNow := nowFunc()
	var unloadKeys []string
	for k, v := range s.data {
		if v.unload(timeNow, s.unloadAfterTime) {
			unloadKeys = append(unloadKeys, k)
		}
	}
	s.lock.RUnlock()

	// Nothing to do
	if len(unloadKeys) == 0 {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	// Unload data from memory (but keep metadata)
	for _, k := range unloadKeys {
		if v, exists := s.data[k]; exists && v.dataLoaded {
			s.data[k] = v.unloaded()
		}
	}
	log.Debug().Int("keys", len(unloadKeys)).Msg("kvstore eviction: unloaded values")
}
