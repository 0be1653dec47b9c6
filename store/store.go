package store

import (
	"fmt"
	"hash"
	"hash/fnv"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/bloomfilter/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/tos-network/bpmcore/log"
)

const (
	packagesPrefix = "packages/"
	ledgersPrefix  = "ledgers/"

	defaultCacheSize        = 1024
	bloomExpectedItems       = 1 << 16
	bloomFalsePositiveRate   = 0.01
)

var log15 = log.New("pkg", "store")

// Store is the local durable mirror: a single goleveldb handle guarded by
// one mutex (spec §5 - "a single mutex guards the store's DB handle, never
// held across channel sends or awaits"), fronted by a read-through LRU
// cache and a negative-lookup bloom filter so repeated misses on
// known-absent keys never touch disk.
type Store struct {
	mu sync.Mutex
	db *leveldb.DB

	cache *lru.Cache
	bloom *bloomfilter.Filter

	Packages *Packages
	Ledgers  *Ledgers
}

// Open opens (creating if absent) a goleveldb database rooted at dir. Pass
// an empty dir to get an in-memory store, useful for tests.
func Open(dir string) (*Store, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if dir == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(dir, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", dir, err)
	}

	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("store: creating cache: %w", err)
	}
	bloom, err := bloomfilter.NewOptimal(bloomExpectedItems, bloomFalsePositiveRate)
	if err != nil {
		return nil, fmt.Errorf("store: creating bloom filter: %w", err)
	}

	s := &Store{db: db, cache: cache, bloom: bloom}
	s.Packages = &Packages{s: s}
	s.Ledgers = &Ledgers{s: s}

	if err := s.rebuildBloom(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) rebuildBloom() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, prefix := range [][]byte{[]byte(packagesPrefix), []byte(ledgersPrefix)} {
		iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
		for iter.Next() {
			s.bloom.Add(bloomHash(iter.Key()))
		}
		err := iter.Error()
		iter.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func bloomHash(key []byte) hash.Hash64 {
	h := fnv.New64a()
	h.Write(key)
	return h
}

func (s *Store) get(key []byte) ([]byte, bool, error) {
	if cached, ok := s.cache.Get(string(key)); ok {
		if cached == nil {
			return nil, false, nil
		}
		return cached.([]byte), true, nil
	}

	// The bloom filter only ever says "definitely absent" or "maybe
	// present"; a negative here lets us skip the disk read entirely.
	if !s.bloom.Contains(bloomHash(key)) {
		s.cache.Add(string(key), nil)
		return nil, false, nil
	}

	s.mu.Lock()
	raw, err := s.db.Get(key, nil)
	s.mu.Unlock()

	if err == leveldb.ErrNotFound {
		s.cache.Add(string(key), nil)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %s: %w", key, err)
	}
	s.cache.Add(string(key), raw)
	return raw, true, nil
}

func (s *Store) put(key, value []byte) error {
	s.mu.Lock()
	err := s.db.Put(key, value, nil)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("store: put %s: %w", key, err)
	}
	s.cache.Add(string(key), value)
	s.bloom.Add(bloomHash(key))
	return nil
}

// scanPrefix returns every value whose key starts with prefix, in key order.
func (s *Store) scanPrefix(prefix []byte) ([][]byte, error) {
	s.mu.Lock()
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	var out [][]byte
	for iter.Next() {
		v := append([]byte(nil), iter.Value()...)
		out = append(out, v)
	}
	err := iter.Error()
	iter.Release()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("store: scanning %s: %w", prefix, err)
	}
	return out, nil
}
