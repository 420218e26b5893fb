// Package height implements the storages of the next height of the ordering
// service.
//
// The persistent implementation stores the height in a key/value database so
// that a restarted node resumes after the last proposal it has cut. Each save
// is a single database transaction: the value is either fully written or the
// previous one is kept.
package height

import (
	"encoding/binary"

	"go.dedis.ch/sequencer/core/store/kv"
	"golang.org/x/xerrors"
)

const heightLen = 8

var (
	defaultBucket = []byte("ordering")
	heightKey     = []byte("next-height")
)

// DiskLedger is a persistent height ledger.
//
// - implements ordering.HeightLedger
type DiskLedger struct {
	db     kv.DB
	bucket []byte
}

// NewDiskLedger creates a new ledger that stores the height in the database.
func NewDiskLedger(db kv.DB) DiskLedger {
	return DiskLedger{
		db:     db,
		bucket: defaultBucket,
	}
}

// Load implements ordering.HeightLedger. It reads the height from the database,
// or returns zero if it has never been saved.
func (l DiskLedger) Load() (uint64, error) {
	var height uint64

	err := l.db.View(func(tx kv.ReadableTx) error {
		bucket := tx.GetBucket(l.bucket)
		if bucket == nil {
			return nil
		}

		value := bucket.Get(heightKey)
		if value == nil {
			return nil
		}

		if len(value) != heightLen {
			return xerrors.Errorf("invalid height length %d", len(value))
		}

		height = binary.BigEndian.Uint64(value)

		return nil
	})

	if err != nil {
		return 0, xerrors.Errorf("while reading height: %v", err)
	}

	return height, nil
}

// Save implements ordering.HeightLedger. It writes the height to the database
// in a single transaction.
func (l DiskLedger) Save(height uint64) error {
	value := make([]byte, heightLen)
	binary.BigEndian.PutUint64(value, height)

	err := l.db.Update(func(tx kv.WritableTx) error {
		bucket, err := tx.GetBucketOrCreate(l.bucket)
		if err != nil {
			return xerrors.Errorf("bucket: %v", err)
		}

		err = bucket.Set(heightKey, value)
		if err != nil {
			return xerrors.Errorf("while setting: %v", err)
		}

		return nil
	})

	if err != nil {
		return xerrors.Errorf("while writing height: %v", err)
	}

	return nil
}
