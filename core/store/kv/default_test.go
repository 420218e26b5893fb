package kv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestBoltDB_New(t *testing.T) {
	dir := t.TempDir()

	db, err := New(filepath.Join(dir, "missing", "test.db"))
	require.Nil(t, db)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open db: ")
}

func TestBoltDB_UpdateAndView(t *testing.T) {
	db, clean := makeDB(t)
	defer clean()

	err := db.Update(func(tx WritableTx) error {
		bucket, err := tx.GetBucketOrCreate([]byte("bucket"))
		require.NoError(t, err)

		return bucket.Set([]byte("ping"), []byte("pong"))
	})
	require.NoError(t, err)

	err = db.View(func(tx ReadableTx) error {
		bucket := tx.GetBucket([]byte("bucket"))
		require.NotNil(t, bucket)

		value := bucket.Get([]byte("ping"))
		require.Equal(t, []byte("pong"), value)

		require.Nil(t, tx.GetBucket([]byte("unknown")))

		return nil
	})
	require.NoError(t, err)

	err = db.Update(func(tx WritableTx) error {
		_, err := tx.GetBucketOrCreate(nil)
		return err
	})
	require.EqualError(t, err, "failed to create bucket: bucket name required")
}

func TestBoltDB_UpdateRollback(t *testing.T) {
	db, clean := makeDB(t)
	defer clean()

	err := db.Update(func(tx WritableTx) error {
		bucket, err := tx.GetBucketOrCreate([]byte("bucket"))
		require.NoError(t, err)

		require.NoError(t, bucket.Set([]byte("ping"), []byte("pong")))

		return xerrors.New("oops")
	})
	require.EqualError(t, err, "oops")

	err = db.View(func(tx ReadableTx) error {
		require.Nil(t, tx.GetBucket([]byte("bucket")))
		return nil
	})
	require.NoError(t, err)
}

func TestBoltDB_Close(t *testing.T) {
	db, clean := makeDB(t)
	defer clean()

	require.NoError(t, db.Close())

	err := db.View(func(ReadableTx) error { return nil })
	require.EqualError(t, err, "database not open")
}

func TestBoltBucket_Get_Set(t *testing.T) {
	db, clean := makeDB(t)
	defer clean()

	err := db.Update(func(tx WritableTx) error {
		b, err := tx.GetBucketOrCreate([]byte("bucket"))
		require.NoError(t, err)

		require.Nil(t, b.Get([]byte("height")))

		require.NoError(t, b.Set([]byte("height"), []byte{1}))
		require.Equal(t, []byte{1}, b.Get([]byte("height")))

		require.NoError(t, b.Set([]byte("height"), []byte{2}))
		require.Equal(t, []byte{2}, b.Get([]byte("height")))

		return nil
	})
	require.NoError(t, err)

	err = db.Update(func(tx WritableTx) error {
		b := tx.GetBucket([]byte("bucket"))
		require.NotNil(t, b)

		return b.Set(nil, []byte{3})
	})
	require.EqualError(t, err, "key required")
}

func TestBoltDB_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := New(path)
	require.NoError(t, err)

	err = db.Update(func(tx WritableTx) error {
		b, err := tx.GetBucketOrCreate([]byte("bucket"))
		require.NoError(t, err)

		return b.Set([]byte("height"), []byte{4})
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)

	defer db.Close()

	err = db.View(func(tx ReadableTx) error {
		b := tx.GetBucket([]byte("bucket"))
		require.NotNil(t, b)
		require.Equal(t, []byte{4}, b.Get([]byte("height")))

		return nil
	})
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeDB(t *testing.T) (DB, func()) {
	dir, err := os.MkdirTemp(os.TempDir(), "sequencer-kv")
	require.NoError(t, err)

	db, err := New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)

	return db, func() {
		db.Close()
		os.RemoveAll(dir)
	}
}
