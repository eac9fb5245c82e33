// Package boltdb stores objects in a single bbolt database file.
package boltdb

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/odvcencio/strata/pkg/object"
)

// FileName is the database file created inside the objects directory.
const FileName = "objects.bolt"

var bucketObjects = []byte("objects")

// Backend implements object.Backend on bbolt. Keys are raw 32-byte IDs,
// values are compressed envelopes.
type Backend struct {
	db          *bolt.DB
	compression object.Compression
}

// Open opens or creates the database at path.
func Open(path string, compression object.Compression) (*Backend, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt objects %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketObjects)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt objects: %w", err)
	}
	return &Backend{db: db, compression: compression}, nil
}

func (b *Backend) Exists(id object.ID) (bool, error) {
	var ok bool
	err := b.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(bucketObjects).Get(id[:]) != nil
		return nil
	})
	return ok, err
}

func (b *Backend) Get(id object.ID) ([]byte, error) {
	var stored []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketObjects).Get(id[:])
		if v == nil {
			return fmt.Errorf("object %s: %w", id, object.ErrNotFound)
		}
		// Values are only valid for the life of the transaction.
		stored = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	raw, err := object.Decompress(stored)
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w", id, err)
	}
	return raw, nil
}

func (b *Backend) Put(id object.ID, raw []byte) error {
	stored, err := object.Compress(b.compression, raw)
	if err != nil {
		return fmt.Errorf("object write %s: %w", id, err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketObjects)
		if bkt.Get(id[:]) != nil {
			return nil
		}
		return bkt.Put(id[:], stored)
	})
}

func (b *Backend) Lookup(prefix string) ([]object.ID, error) {
	seek := object.SeekPrefix(prefix)
	var out []object.ID
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketObjects).Cursor()
		for k, _ := c.Seek(seek); k != nil && bytes.HasPrefix(k, seek); k, _ = c.Next() {
			id, err := object.IDFromBytes(k)
			if err != nil {
				return err
			}
			if id.HasPrefix(prefix) {
				out = append(out, id)
			}
		}
		return nil
	})
	return out, err
}

func (b *Backend) Delete(id object.ID) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketObjects).Delete(id[:])
	})
}

// ForEach visits every object in key order. fn must not write to b.
func (b *Backend) ForEach(fn func(id object.ID, raw []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketObjects).ForEach(func(k, v []byte) error {
			id, err := object.IDFromBytes(k)
			if err != nil {
				return err
			}
			raw, err := object.Decompress(v)
			if err != nil {
				return fmt.Errorf("object read %s: %w", id, err)
			}
			return fn(id, raw)
		})
	})
}

// Clear drops every stored object.
func (b *Backend) Clear() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketObjects); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketObjects)
		return err
	})
}

func (b *Backend) Close() error {
	return b.db.Close()
}
