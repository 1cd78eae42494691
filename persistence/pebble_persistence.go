package persistence

import (
	"encoding/json"

	"github.com/cockroachdb/pebble"
	"github.com/jrsteele09/go-pluggable-store/kvstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Key prefixes separating metadata records from data records.
var (
	metaPrefix = []byte("m\x00")
	dataPrefix = []byte("d\x00")
)

// Pebble persists key-values in a pebble database.
// Metadata and data for a key are written in one atomic batch.
type Pebble struct {
	db *pebble.DB
}

// NewPebble opens (or creates) a pebble database in dir.
// opts may be nil, in which case pebble's defaults are used.
func NewPebble(dir string, opts *pebble.Options) (*Pebble, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, "NewPebble: Open")
	}
	return &Pebble{db: db}, nil
}

// Close closes the database.
func (p *Pebble) Close() {
	if err := p.db.Close(); err != nil {
		log.Error().Err(err).Msg("Pebble.Close")
	}
}

// Keys returns every key with a metadata record.
func (p *Pebble) Keys() ([]string, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: metaPrefix,
		UpperBound: prefixEnd(metaPrefix),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Pebble.Keys NewIter")
	}
	defer iter.Close()

	keys := make([]string, 0)
	for valid := iter.First(); valid; valid = iter.Next() {
		keys = append(keys, string(iter.Key()[len(metaPrefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "Pebble.Keys iterate")
	}
	return keys, nil
}

// Write stores the item's metadata and data.
func (p *Pebble) Write(key string, data *kvstore.ValueItem) error {
	metaData, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "Pebble.Write json.Marshal")
	}
	payload, err := data.MarshalData()
	if err != nil {
		return errors.Wrap(err, "Pebble.Write MarshalData")
	}

	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(recordKey(metaPrefix, key), metaData, nil); err != nil {
		return errors.Wrap(err, "Pebble.Write Set metadata")
	}
	if err := batch.Set(recordKey(dataPrefix, key), payload, nil); err != nil {
		return errors.Wrap(err, "Pebble.Write Set data")
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "Pebble.Write Commit")
	}
	return nil
}

// Delete removes the key's records. Missing keys are not an error.
func (p *Pebble) Delete(key string) error {
	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(recordKey(metaPrefix, key), nil); err != nil {
		return errors.Wrap(err, "Pebble.Delete metadata")
	}
	if err := batch.Delete(recordKey(dataPrefix, key), nil); err != nil {
		return errors.Wrap(err, "Pebble.Delete data")
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "Pebble.Delete Commit")
	}
	return nil
}

// Read retrieves the ValueItem for key.
func (p *Pebble) Read(key string, readValue bool) (*kvstore.ValueItem, error) {
	metaData, err := p.get(recordKey(metaPrefix, key))
	if err != nil {
		return nil, errors.Wrap(err, "Pebble.Read metadata")
	}
	var mv kvstore.ValueItem
	if err := json.Unmarshal(metaData, &mv); err != nil {
		return nil, errors.Wrap(err, "Pebble.Read json.Unmarshal")
	}
	if !readValue {
		return &mv, nil
	}

	payload, err := p.get(recordKey(dataPrefix, key))
	if err != nil {
		return nil, errors.Wrap(err, "Pebble.Read data")
	}
	if err := mv.SetData(payload); err != nil {
		return nil, errors.Wrap(err, "Pebble.Read mv.SetData")
	}
	return &mv, nil
}

func (p *Pebble) get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func recordKey(prefix []byte, key string) []byte {
	k := make([]byte, 0, len(prefix)+len(key))
	k = append(k, prefix...)
	return append(k, key...)
}

// prefixEnd returns the smallest key greater than every key with the given prefix.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	end[len(end)-1]++
	return end
}
