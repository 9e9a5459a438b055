package pebble

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	errs "github.com/mosaicwallet/tx-engine/models/errors"
)

type Storage struct {
	db  *pebble.DB
	log zerolog.Logger
}

// New creates a new storage instance using the provided dir location as
// the storage directory.
func New(dir string, log zerolog.Logger) (*Storage, error) {
	cache := pebble.NewCache(1 << 20)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:                 cache,
		FormatMajorVersion:    pebble.FormatNewest,
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 1000,
		// When the maximum number of bytes for a level is exceeded,
		// compaction is requested.
		LBaseMaxBytes: 64 << 20, // 64 MB
		Levels:        make([]pebble.LevelOptions, 7),
		MaxOpenFiles:  16384,
		// Writes are stopped when the sum of the queued memtable sizes
		// exceeds MemTableStopWritesThreshold*MemTableSize.
		MemTableSize:                64 << 20,
		MemTableStopWritesThreshold: 4,
	}

	for i := 0; i < len(opts.Levels); i++ {
		l := &opts.Levels[i]
		l.BlockSize = 32 << 10       // 32 KB
		l.IndexBlockSize = 256 << 10 // 256 KB
		if i > 0 {
			// L0 starts at 2MiB, each level is 2x the previous.
			l.TargetFileSize = opts.Levels[i-1].TargetFileSize * 2
		}
		l.EnsureDefaults()
	}
	opts.EnsureDefaults()

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open db for dir: %s, with: %w", dir, err)
	}

	return &Storage{
		db:  db,
		log: log.With().Str("component", "storage").Logger(),
	}, nil
}

func (s *Storage) set(keyCode byte, key []byte, value []byte, batch *pebble.Batch) error {
	prefixedKey := makePrefix(keyCode, key)

	if batch != nil {
		// batch writes are committed as a single atomic unit
		return batch.Set(prefixedKey, value, nil)
	}

	return s.db.Set(prefixedKey, value, pebble.Sync)
}

func (s *Storage) delete(keyCode byte, key []byte, batch *pebble.Batch) error {
	prefixedKey := makePrefix(keyCode, key)

	if batch != nil {
		return batch.Delete(prefixedKey, nil)
	}

	return s.db.Delete(prefixedKey, pebble.Sync)
}

func (s *Storage) get(keyCode byte, key ...[]byte) ([]byte, error) {
	prefixedKey := makePrefix(keyCode, key...)

	data, closer, err := s.db.Get(prefixedKey)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			s.log.Error().Err(err).Msg("failed to close value getter")
		}
	}()

	cp := make([]byte, len(data))
	copy(cp, data)

	return cp, nil
}

// iterate calls f with the key suffix and value of every entry under the
// given key code prefix, in key order.
func (s *Storage) iterate(keyCode byte, prefix []byte, f func(key, value []byte) error) error {
	lower := makePrefix(keyCode, prefix)
	upper := upperBound(lower)

	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := it.Close(); err != nil {
			s.log.Error().Err(err).Msg("failed to close iterator")
		}
	}()

	for it.First(); it.Valid(); it.Next() {
		key := make([]byte, len(it.Key())-len(lower))
		copy(key, it.Key()[len(lower):])

		value, err := it.ValueAndErr()
		if err != nil {
			return err
		}
		cp := make([]byte, len(value))
		copy(cp, value)

		if err := f(key, cp); err != nil {
			return err
		}
	}

	return nil
}

func (s *Storage) NewBatch() *pebble.Batch {
	return s.db.NewBatch()
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// WithBatch will execute the provided function with a new batch, and commit
// the batch afterwards if no error is returned.
func WithBatch(store *Storage, f func(batch *pebble.Batch) error) error {
	batch := store.NewBatch()
	defer func(batch *pebble.Batch) {
		if err := batch.Close(); err != nil {
			store.log.Error().Err(err).Msg("failed to close batch")
		}
	}(batch)

	if err := f(batch); err != nil {
		return err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}
