package bronze

import (
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// Meta is the change-detection record kept per cache key: what was fetched,
// the remote's validators at fetch time, and where the converted Parquet
// artifacts live.
type Meta struct {
	Key          string    `json:"key"`
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	Files        []string  `json:"files"`
	Columns      []string  `json:"columns"`
	Rows         int64     `json:"rows"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// MetaStore persists Meta records. Implementations must tolerate concurrent
// access from multiple pipelines in one process.
type MetaStore interface {
	Get(key string) (*Meta, error)
	Put(m *Meta) error
	Delete(key string) error
	Close() error
}

var metaBucket = []byte("bronzeMeta")

// BoltStore is the default MetaStore, backed by a single boltdb file in the
// cache directory.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the bolt-backed meta store at filename.
func OpenBoltStore(filename string) (*BoltStore, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt db at %s", filename)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, berr := tx.CreateBucketIfNotExists(metaBucket)
		return berr
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating meta bucket")
	}
	return &BoltStore{db: db}, nil
}

// Get returns the meta record for key, or nil if none exists.
func (s *BoltStore) Get(key string) (m *Meta, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metaBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		m = &Meta{}
		return errors.Wrap(json.Unmarshal(v, m), "decoding meta")
	})
	return m, err
}

// Put stores the meta record under its key.
func (s *BoltStore) Put(m *Meta) error {
	v, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding meta")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(m.Key), v)
	})
}

// Delete removes the record for key (a no-op if absent).
func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Delete([]byte(key))
	})
}

// Close syncs and closes the underlying db.
func (s *BoltStore) Close() error {
	if err := s.db.Sync(); err != nil {
		return errors.Wrap(err, "syncing bolt db")
	}
	return s.db.Close()
}
