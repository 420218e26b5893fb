package fake

import (
	"sync"

	"go.dedis.ch/sequencer/core/store/kv"
)

// InMemoryDB is a fake implementation of a key/value database. The errors
// can be set to simulate failures of the storage.
//
// - implements kv.DB
type InMemoryDB struct {
	sync.Mutex

	buckets   map[string]*inMemoryBucket
	ErrView   error
	ErrUpdate error
	ErrBucket error
	ErrSet    error
}

// NewInMemoryDB returns a new empty database.
func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		buckets: make(map[string]*inMemoryBucket),
	}
}

// NewBadDB returns a database that fails to read and write.
func NewBadDB() *InMemoryDB {
	db := NewInMemoryDB()
	db.ErrView = fakeErr
	db.ErrUpdate = fakeErr

	return db
}

// View implements kv.DB.
func (db *InMemoryDB) View(fn func(kv.ReadableTx) error) error {
	db.Lock()
	defer db.Unlock()

	if db.ErrView != nil {
		return db.ErrView
	}

	return fn(inMemoryTx{db: db})
}

// Update implements kv.DB.
func (db *InMemoryDB) Update(fn func(kv.WritableTx) error) error {
	db.Lock()
	defer db.Unlock()

	if db.ErrUpdate != nil {
		return db.ErrUpdate
	}

	return fn(inMemoryTx{db: db})
}

// Close implements kv.DB.
func (db *InMemoryDB) Close() error {
	return nil
}

type inMemoryTx struct {
	db *InMemoryDB
}

func (tx inMemoryTx) GetBucket(name []byte) kv.Bucket {
	bucket, found := tx.db.buckets[string(name)]
	if !found {
		return nil
	}

	return bucket
}

func (tx inMemoryTx) GetBucketOrCreate(name []byte) (kv.Bucket, error) {
	if tx.db.ErrBucket != nil {
		return nil, tx.db.ErrBucket
	}

	bucket, found := tx.db.buckets[string(name)]
	if !found {
		bucket = &inMemoryBucket{
			values: make(map[string][]byte),
			errSet: tx.db.ErrSet,
		}

		tx.db.buckets[string(name)] = bucket
	}

	return bucket, nil
}

type inMemoryBucket struct {
	kv.Bucket

	values map[string][]byte
	errSet error
}

func (b *inMemoryBucket) Get(key []byte) []byte {
	return b.values[string(key)]
}

func (b *inMemoryBucket) Set(key, value []byte) error {
	if b.errSet != nil {
		return b.errSet
	}

	b.values[string(key)] = value

	return nil
}
