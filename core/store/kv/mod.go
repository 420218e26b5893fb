// Package kv defines the abstraction for a key/value database.
//
// The package also implements a default database implementation that is using
// bbolt as the engine (https://github.com/etcd-io/bbolt). Every update runs in
// a single bbolt transaction, which is either fully applied or not at all,
// including after a crash.
package kv

// Bucket is a named set of keys in the database. The ordering service only
// needs to read and overwrite single values.
type Bucket interface {
	// Get returns the value of the key, or nil if the key is not set. The slice
	// is only valid for the lifetime of the transaction.
	Get(key []byte) []byte

	// Set assigns the value to the key, replacing any previous value.
	Set(key, value []byte) error
}

// ReadableTx allows one to perform read-only atomic operations on the database.
type ReadableTx interface {
	// GetBucket returns the bucket of the given name if it exists, otherwise it
	// returns nil.
	GetBucket(name []byte) Bucket
}

// WritableTx allows one to perform atomic operations on the database.
type WritableTx interface {
	ReadableTx

	// GetBucketOrCreate returns the bucket of the given name if it exists, or
	// it creates it.
	GetBucketOrCreate(name []byte) (Bucket, error)
}

// DB is a general interface to operate over a key/value database.
type DB interface {
	// View executes the provided read-only transaction in the context of the
	// database.
	View(fn func(ReadableTx) error) error

	// Update executes the provided writable transaction in the context of the
	// database.
	Update(fn func(WritableTx) error) error

	// Close closes the database and free the resources.
	Close() error
}
