package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketValues = []byte("kv")
	bucketSets   = []byte("sets")
)

// BoltStore is an embedded, single-node Store backed by BoltDB.
// Values live in the "kv" bucket; each set is a nested bucket under "sets"
// whose keys are the members.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the database file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{NoSync: false})
	if err != nil {
		return nil, unavailable("open bolt db", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketValues, bucketSets} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, unavailable("create buckets", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	var (
		val   string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketValues).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		val = string(v)
		return nil
	})
	if err != nil {
		return "", false, unavailable("get", err)
	}
	return val, found, nil
}

func (s *BoltStore) Set(ctx context.Context, key, value string) error {
	return s.Apply(ctx, SetOp(key, value))
}

func (s *BoltStore) AddToSet(ctx context.Context, key, member string) error {
	return s.Apply(ctx, AddToSetOp(key, member))
}

func (s *BoltStore) ListSet(ctx context.Context, key string) ([]string, error) {
	_ = ctx
	members := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		set := tx.Bucket(bucketSets).Bucket([]byte(key))
		if set == nil {
			return nil
		}
		return set.ForEach(func(k, _ []byte) error {
			members = append(members, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("list set", err)
	}
	return members, nil
}

// Apply runs all ops in a single read-write transaction.
func (s *BoltStore) Apply(ctx context.Context, ops ...Op) error {
	_ = ctx
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, op := range ops {
			switch op.Kind {
			case OpSet:
				if err := tx.Bucket(bucketValues).Put([]byte(op.Key), []byte(op.Value)); err != nil {
					return err
				}
			case OpAddToSet:
				set, err := tx.Bucket(bucketSets).CreateBucketIfNotExists([]byte(op.Key))
				if err != nil {
					return err
				}
				if err := set.Put([]byte(op.Value), []byte{}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("update", err)
	}
	return nil
}

func (s *BoltStore) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	_ = ctx
	var keys []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketValues).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("scan", err)
	}
	return keys, nil
}

func (s *BoltStore) Ping(ctx context.Context) error {
	_ = ctx
	if err := s.db.View(func(*bolt.Tx) error { return nil }); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
