// Package badgerdb stores objects in a BadgerDB directory.
package badgerdb

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/odvcencio/strata/pkg/object"
)

// DirName is the database directory created inside the objects directory.
const DirName = "badger"

// keyPrefix namespaces object keys inside the database.
var keyPrefix = []byte("obj:")

func makeKey(id object.ID) []byte {
	k := make([]byte, 0, len(keyPrefix)+object.IDSize)
	k = append(k, keyPrefix...)
	return append(k, id[:]...)
}

// Backend implements object.Backend on BadgerDB.
type Backend struct {
	db          *badger.DB
	compression object.Compression
}

// Options configure Open.
type Options struct {
	Compression object.Compression
	// InMemory keeps everything in memory; dir is ignored. Used by tests.
	InMemory   bool
	SyncWrites bool
}

// Open opens or creates the database in dir.
func Open(dir string, o Options) (*Backend, error) {
	opts := badger.DefaultOptions(dir)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(o.SyncWrites).WithLogger(nil)
	// Envelopes are compressed before they reach badger.
	opts = opts.WithCompression(options.None)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger objects %s: %w", dir, err)
	}
	return &Backend{db: db, compression: o.Compression}, nil
}

func (b *Backend) Exists(id object.ID) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(makeKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) Get(id object.ID) ([]byte, error) {
	var stored []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("object %s: %w", id, object.ErrNotFound)
		}
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
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
	return b.db.Update(func(txn *badger.Txn) error {
		key := makeKey(id)
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, stored)
	})
}

func (b *Backend) Lookup(prefix string) ([]object.ID, error) {
	seek := append(append([]byte{}, keyPrefix...), object.SeekPrefix(prefix)...)
	var out []object.ID
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			id, err := object.IDFromBytes(it.Item().Key()[len(keyPrefix):])
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
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(makeKey(id))
	})
}

// ForEach visits every object in key order.
func (b *Backend) ForEach(fn func(id object.ID, raw []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			item := it.Item()
			id, err := object.IDFromBytes(item.Key()[len(keyPrefix):])
			if err != nil {
				return err
			}
			stored, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			raw, err := object.Decompress(stored)
			if err != nil {
				return fmt.Errorf("object read %s: %w", id, err)
			}
			if err := fn(id, raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear drops every stored object.
func (b *Backend) Clear() error {
	return b.db.DropPrefix(keyPrefix)
}

// RunGC reclaims value log space. It reports whether a value log file was
// rewritten; having nothing to rewrite is not an error.
func (b *Backend) RunGC(discardRatio float64) (bool, error) {
	err := b.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}
