package kvstore

import "time"

// StoreOption is a type for functions that configure a Store.
// These functions are intended to be used with the New function
// to create a customized Store instance.
type StoreOption func(s *Store)

// WithUnloadFrequencyOption returns a StoreOption that configures how often the store
// checks for idle values and how long a value stays in memory before being unloaded.
// Unloading only happens when a persister is configured, since unloaded data is re-read from it.
//
// - 'ef' sets how often the store should check for values to unload.
// - 'uf' sets the duration an object will stay in memory before being unloaded.
//
// Example:
//
//	New(WithUnloadFrequencyOption(time.Minute, time.Hour))
func WithUnloadFrequencyOption(ef time.Duration, uf time.Duration) StoreOption {
	return func(s *Store) {
		s.evictionFreq = ef
		s.unloadAfterTime = uf
	}
}

// WithPersistenceOption returns a StoreOption that appends persisters to the Store.
// The first persister added is the one the Store loads from.
//
// Example:
//
//	New(WithPersistenceOption(persister1, persister2))
func WithPersistenceOption(persistence ...DataPersister) StoreOption {
	return func(s *Store) {
		s.persistence = append(s.persistence, persistence...)
	}
}

// WithWriteBufferOption sets how many batches may wait in the write queue
// before Apply blocks.
func WithWriteBufferOption(size uint) StoreOption {
	return func(s *Store) {
		s.writeBufferSize = size
	}
}
