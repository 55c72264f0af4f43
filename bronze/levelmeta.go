package bronze

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// LevelStore is a LevelDB-backed MetaStore. Interchangeable with BoltStore;
// useful where many pipelines in separate processes would contend on bolt's
// single-writer file lock and each keeps its own store.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (or creates) a leveldb-backed meta store at dirname.
func OpenLevelStore(dirname string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(dirname, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %s", dirname)
	}
	return &LevelStore{db: db}, nil
}

// Get returns the meta record for key, or nil if none exists.
func (s *LevelStore) Get(key string) (*Meta, error) {
	v, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading meta for %s", key)
	}
	m := &Meta{}
	if err := json.Unmarshal(v, m); err != nil {
		return nil, errors.Wrap(err, "decoding meta")
	}
	return m, nil
}

// Put stores the meta record under its key.
func (s *LevelStore) Put(m *Meta) error {
	v, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding meta")
	}
	return errors.Wrapf(s.db.Put([]byte(m.Key), v, nil), "writing meta for %s", m.Key)
}

// Delete removes the record for key (a no-op if absent).
func (s *LevelStore) Delete(key string) error {
	return errors.Wrapf(s.db.Delete([]byte(key), nil), "deleting meta for %s", key)
}

// Close closes the underlying db.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
