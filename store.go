// Ordered key-value store backed by bbolt.
//
// Canonical path bytes are used directly as store keys, so bbolt's sorted
// cursor gives range access for free: seeking to a path prefix and walking
// forward visits exactly the subtree rooted there, in traversal order.
// Values are stored whole — continuation chunking is a wire-stream concern,
// and bbolt has no entry size ceiling that requires it. Writing a path that
// already exists overwrites it, which is how document updates are expressed
// at the store level.
package flatwire

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var storeBucket = []byte("flatwire")

// Store is a document store over a single bbolt file.
type Store struct {
	db *bolt.DB
}

// OpenStore opens or creates the store file at name.
func OpenStore(name string) (*Store, error) {
	db, err := bolt.Open(name, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(storeBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores value at path, overwriting any previous value.
func (s *Store) Put(p Path, value []byte) error {
	if err := p.validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(storeBucket).Put(p, value)
	})
}

// PutDocument stores every leaf of d in one transaction. Unlike a stream
// encode, insertion order does not matter: the store keeps keys sorted.
func (s *Store) PutDocument(d *Document) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(storeBucket)
		for p, v := range d.Flatten() {
			if err := p.validate(); err != nil {
				return err
			}
			if err := b.Put(p, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the value stored at path, or ErrNotFound.
func (s *Store) Get(p Path) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(storeBucket).Get(p)
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		value = bytes.Clone(v)
		return nil
	})
	return value, err
}

// Delete removes the value at path. Deleting a missing path is a no-op.
func (s *Store) Delete(p Path) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(storeBucket).Delete(p)
	})
}

// Subtree reconstructs the document rooted at prefix via a cursor range
// scan. Subtree keys are contiguous under the sorted order, so the scan
// stops at the first key outside the subtree. An empty result is an unset
// document, which renders as JSON null.
func (s *Store) Subtree(prefix Path) (*Document, error) {
	root := &Document{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(storeBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && extendsPath(k, prefix); k, v = c.Next() {
			if err := root.insert(Path(k[len(prefix):]).Clone(), bytes.Clone(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// Document reconstructs the whole store contents.
func (s *Store) Document() (*Document, error) {
	return s.Subtree(nil)
}
