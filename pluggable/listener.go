package pluggable

import (
	"github.com/jrsteele09/go-pluggable-store/kvstore"
	"github.com/rs/zerolog/log"
)

// listenerAdapter is what the base store actually holds. It decodes the physical key
// and forwards the change with the Store as the source.
type listenerAdapter struct {
	store    *Store
	listener kvstore.OnChangeListener
}

func (a *listenerAdapter) OnPreferenceChanged(_ kvstore.Preferences, key string) {
	logicalKey, err := a.store.keyDecoder.Convert(key)
	if err != nil {
		a.store.onListenerError(key, err)
		return
	}
	a.listener.OnPreferenceChanged(a.store, logicalKey)
}

// RegisterOnChangeListener registers l through an adapter on the base store.
// Listeners are tracked by identity, so l must be of a comparable type;
// registering a listener that is already registered does nothing.
func (s *Store) RegisterOnChangeListener(l kvstore.OnChangeListener) error {
	if !kvstore.ListenerComparable(l) {
		return kvstore.ErrListenerNotComparable
	}

	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	if s.closed {
		return kvstore.ErrClosed
	}
	if _, ok := s.adapters[l]; ok {
		return nil
	}

	adapter := &listenerAdapter{store: s, listener: l}
	if err := s.base.RegisterOnChangeListener(adapter); err != nil {
		return err
	}
	s.adapters[l] = adapter
	log.Debug().Int("listeners", len(s.adapters)).Msg("pluggable.Store: listener registered")
	return nil
}

// UnregisterOnChangeListener removes the adapter registered for l. Unknown listeners are ignored.
func (s *Store) UnregisterOnChangeListener(l kvstore.OnChangeListener) {
	if !kvstore.ListenerComparable(l) {
		return
	}

	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	adapter, ok := s.adapters[l]
	if !ok {
		return
	}
	delete(s.adapters, l)
	s.base.UnregisterOnChangeListener(adapter)
}

// Close unregisters every remaining listener adapter from the base store.
// The base store itself is left open. Close is safe to call more than once,
// and listeners cannot be registered afterwards.
func (s *Store) Close() error {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for l, adapter := range s.adapters {
		s.base.UnregisterOnChangeListener(adapter)
		delete(s.adapters, l)
	}
	return nil
}
