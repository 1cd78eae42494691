package kvstore

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// persistOp writes item against key in every persister, or deletes key when item is nil.
type persistOp struct {
	key  string
	item *ValueItem
}

type writeCommand struct {
	ops      []persistOp
	response chan error
}

// commit applies a batch to memory, queues it for persistence and notifies listeners.
// Clear is applied before the batch's other mutations.
func (s *Store) commit(mutations []mutation, clear bool, wait bool) error {
	s.writeLock.RLock()
	if s.closed.Load() {
		s.writeLock.RUnlock()
		return ErrClosed
	}

	s.lock.Lock()
	changed, ops := s.applyMutations(mutations, clear)
	cmd := writeCommand{ops: ops}
	if wait {
		cmd.response = make(chan error, 1)
	}
	// Queued under the data lock so persistence follows the order batches hit memory.
	if len(ops) > 0 || wait {
		s.writes <- cmd
	}
	s.lock.Unlock()
	s.writeLock.RUnlock()

	var err error
	if wait {
		err = <-cmd.response
	}
	s.notify(changed)
	return err
}

// applyMutations must be called with s.lock held.
func (s *Store) applyMutations(mutations []mutation, clear bool) ([]string, []persistOp) {
	var changed []string
	var ops []persistOp
	seen := make(map[string]bool)
	markChanged := func(key string, item *ValueItem) {
		ops = append(ops, persistOp{key: key, item: item})
		if !seen[key] {
			seen[key] = true
			changed = append(changed, key)
		}
	}

	if clear {
		for k := range s.data {
			delete(s.data, k)
			markChanged(k, nil)
		}
	}

	for _, m := range mutations {
		existing, ok := s.data[m.key]
		if m.item == nil {
			if !ok {
				continue
			}
			delete(s.data, m.key)
			markChanged(m.key, nil)
			continue
		}
		if ok && existing.dataLoaded && sameData(existing, m.item) {
			continue
		}
		s.data[m.key] = m.item
		markChanged(m.key, m.item)
	}
	return changed, ops
}

func sameData(a, b *ValueItem) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case StringKind:
		return a.Data == b.Data
	case StringSetKind:
		if a.Set.Len() != b.Set.Len() {
			return false
		}
		for _, v := range b.Set.Values() {
			if !a.Set.Contains(v) {
				return false
			}
		}
		return true
	}
	return true
}

// writeQueue persists batches in the order they were committed.
func (s *Store) writeQueue() {
	defer s.writerWg.Done()
	for cmd := range s.writes {
		err := s.persistOps(cmd.ops)
		if cmd.response != nil {
			cmd.response <- err
			continue
		}
		if err != nil {
			log.Error().Err(err).Int("ops", len(cmd.ops)).Msg("Store.writeQueue: background persist failed")
		}
	}
	log.Debug().Msg("Store.writeQueue stopped")
}

func (s *Store) persistOps(ops []persistOp) error {
	var returnError error
	for _, op := range ops {
		for _, p := range s.persistence {
			var err error
			if op.item == nil {
				err = p.Delete(op.key)
			} else {
				err = p.Write(op.key, op.item)
			}
			if err != nil && returnError == nil {
				returnError = fmt.Errorf("Store.persistOps key %q: %w", op.key, err)
			}
		}
	}
	return returnError
}
