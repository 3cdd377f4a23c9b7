// Package boltstore adapts an embedded bbolt database to the cache.Store
// contract. It backs local development and tests where no Redis server is
// available; entries survive process restarts.
package boltstore

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/gobwas/glob"
	bolt "go.etcd.io/bbolt"

	"github.com/campuskit/portal-cache/cache"
)

var (
	kvBucket   = []byte("kv")
	hashBucket = []byte("hash")

	// metaField holds the hash record expiry inside each nested bucket.
	// A zero byte cannot collide with normalized field names.
	metaField = []byte{0}
)

// Store implements cache.Store over a bbolt file.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

var _ cache.Store = (*Store)(nil)

// Open initializes or opens a Store at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, &cache.StoreError{Op: "open", Key: path, Err: err}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(kvBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(hashBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, &cache.StoreError{Op: "open", Key: path, Err: err}
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements cache.Store. Expired entries read as misses; reclamation is
// left to the next write under the same key or a flush.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var out string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(kvBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		exp, val := decode(raw)
		if s.expired(exp) {
			return nil
		}
		out = string(val)
		found = true
		return nil
	})
	if err != nil {
		return "", false, &cache.StoreError{Op: "get", Key: key, Err: err}
	}
	return out, found, nil
}

// Set implements cache.Store.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	buf := encode(s.deadline(ttl), []byte(value))
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Put([]byte(key), buf)
	})
	if err != nil {
		return &cache.StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// HGet implements cache.Store.
func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	var out string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		rec := tx.Bucket(hashBucket).Bucket([]byte(key))
		if rec == nil || s.recordExpired(rec) {
			return nil
		}
		raw := rec.Get([]byte(field))
		if raw == nil {
			return nil
		}
		out = string(raw)
		found = true
		return nil
	})
	if err != nil {
		return "", false, &cache.StoreError{Op: "hget", Key: key, Err: err}
	}
	return out, found, nil
}

// HSet implements cache.Store. Writing any field refreshes the record TTL.
func (s *Store) HSet(ctx context.Context, key, field, value string, ttl time.Duration) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		rec, err := tx.Bucket(hashBucket).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		if s.recordExpired(rec) {
			var stale [][]byte
			if err := rec.ForEach(func(k, _ []byte) error {
				stale = append(stale, append([]byte(nil), k...))
				return nil
			}); err != nil {
				return err
			}
			for _, k := range stale {
				if err := rec.Delete(k); err != nil {
					return err
				}
			}
		}
		var expBuf [8]byte
		binary.BigEndian.PutUint64(expBuf[:], uint64(s.deadline(ttl)))
		if err := rec.Put(metaField, expBuf[:]); err != nil {
			return err
		}
		return rec.Put([]byte(field), []byte(value))
	})
	if err != nil {
		return &cache.StoreError{Op: "hset", Key: key, Err: err}
	}
	return nil
}

// HVals implements cache.Store.
func (s *Store) HVals(ctx context.Context, key string) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		rec := tx.Bucket(hashBucket).Bucket([]byte(key))
		if rec == nil || s.recordExpired(rec) {
			return nil
		}
		return rec.ForEach(func(k, v []byte) error {
			if len(k) == 1 && k[0] == 0 {
				return nil
			}
			out = append(out, string(v))
			return nil
		})
	})
	if err != nil {
		return nil, &cache.StoreError{Op: "hvals", Key: key, Err: err}
	}
	return out, nil
}

// Keys implements cache.Store using glob semantics compatible with the Redis
// KEYS command.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, &cache.StoreError{Op: "keys", Key: pattern, Err: err}
	}
	var out []string
	err = s.db.View(func(tx *bolt.Tx) error {
		kv := tx.Bucket(kvBucket)
		if err := kv.ForEach(func(k, v []byte) error {
			exp, _ := decode(v)
			if !s.expired(exp) && g.Match(string(k)) {
				out = append(out, string(k))
			}
			return nil
		}); err != nil {
			return err
		}
		hashes := tx.Bucket(hashBucket)
		return hashes.ForEachBucket(func(k []byte) error {
			rec := hashes.Bucket(k)
			if rec != nil && !s.recordExpired(rec) && g.Match(string(k)) {
				out = append(out, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, &cache.StoreError{Op: "keys", Key: pattern, Err: err}
	}
	return out, nil
}

// Del implements cache.Store.
func (s *Store) Del(ctx context.Context, key string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		kv := tx.Bucket(kvBucket)
		if kv.Get([]byte(key)) != nil {
			existed = true
			if err := kv.Delete([]byte(key)); err != nil {
				return err
			}
		}
		hashes := tx.Bucket(hashBucket)
		if hashes.Bucket([]byte(key)) != nil {
			existed = true
			return hashes.DeleteBucket([]byte(key))
		}
		return nil
	})
	if err != nil {
		return false, &cache.StoreError{Op: "del", Key: key, Err: err}
	}
	return existed, nil
}

// FlushPattern implements cache.Store. The scan and the deletes share one
// write transaction, so the flush is atomic.
func (s *Store) FlushPattern(ctx context.Context, pattern string) error {
	g, err := glob.Compile(pattern)
	if err != nil {
		return &cache.StoreError{Op: "flush", Key: pattern, Err: err}
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		kv := tx.Bucket(kvBucket)
		var doomed [][]byte
		if err := kv.ForEach(func(k, _ []byte) error {
			if g.Match(string(k)) {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range doomed {
			if err := kv.Delete(k); err != nil {
				return err
			}
		}

		hashes := tx.Bucket(hashBucket)
		doomed = doomed[:0]
		if err := hashes.ForEachBucket(func(k []byte) error {
			if g.Match(string(k)) {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range doomed {
			if err := hashes.DeleteBucket(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &cache.StoreError{Op: "flush", Key: pattern, Err: err}
	}
	return nil
}

func (s *Store) recordExpired(rec *bolt.Bucket) bool {
	raw := rec.Get(metaField)
	if len(raw) != 8 {
		return false
	}
	return s.expired(int64(binary.BigEndian.Uint64(raw)))
}

func (s *Store) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.now().Add(ttl).UnixNano()
}

func (s *Store) expired(exp int64) bool {
	return exp > 0 && s.now().UnixNano() > exp
}

// encode lays out an entry as 8 bytes of big endian expiry followed by the
// raw value.
func encode(exp int64, value []byte) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(exp))
	copy(buf[8:], value)
	return buf
}

func decode(raw []byte) (int64, []byte) {
	if len(raw) < 8 {
		return 0, raw
	}
	return int64(binary.BigEndian.Uint64(raw[:8])), raw[8:]
}
