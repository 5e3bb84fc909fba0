// Package bbolt implements the embedded storage driver on top of a
// single BoltDB file, with one bucket per catalog table.
package bbolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/teryt-cache/internal/codec"
	"github.com/louisbranch/teryt-cache/internal/storage"
)

// Driver provides a BoltDB-backed storage driver.
type Driver struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed driver at the provided path.
func Open(path string) (*Driver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	return &Driver{db: db}, nil
}

// Close closes the underlying BoltDB database.
func (d *Driver) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Table opens an existing table. It fails with ErrNotInitialized when
// the bucket does not exist.
func (d *Driver) Table(ctx context.Context, name string, c codec.Codec) (storage.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := d.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return fmt.Errorf("table %s: %w", name, storage.ErrNotInitialized)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &table{db: d.db, bucket: name, codec: c}, nil
}

// Create destroys any previous table with that name and returns a
// fresh, empty one.
func (d *Driver) Create(ctx context.Context, name string, c codec.Codec) (storage.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := d.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(name)) != nil {
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return fmt.Errorf("drop bucket %s: %w", name, err)
			}
		}
		if _, err := tx.CreateBucket([]byte(name)); err != nil {
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &table{db: d.db, bucket: name, codec: c}, nil
}

// GetOrCreate opens the named table, creating an empty bucket when it
// does not exist yet.
func (d *Driver) GetOrCreate(ctx context.Context, name string, c codec.Codec) (storage.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := d.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &table{db: d.db, bucket: name, codec: c}, nil
}

type table struct {
	db     *bbolt.DB
	bucket string
	codec  codec.Codec
}

func (t *table) Get(ctx context.Context, key string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(t.bucket))
		if bucket == nil {
			return fmt.Errorf("table %s: %w", t.bucket, storage.ErrNotInitialized)
		}
		payload := bucket.Get([]byte(key))
		if payload == nil {
			return fmt.Errorf("%s[%s]: %w", t.bucket, key, storage.ErrKeyNotFound)
		}
		return t.codec.Unmarshal(payload, out)
	})
}

func (t *table) Put(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := t.codec.Marshal(v)
	if err != nil {
		return err
	}
	return t.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(t.bucket))
		if bucket == nil {
			return fmt.Errorf("table %s: %w", t.bucket, storage.ErrNotInitialized)
		}
		return bucket.Put([]byte(key), payload)
	})
}

func (t *table) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(t.bucket))
		if bucket == nil {
			return fmt.Errorf("table %s: %w", t.bucket, storage.ErrNotInitialized)
		}
		if bucket.Get([]byte(key)) == nil {
			return fmt.Errorf("%s[%s]: %w", t.bucket, key, storage.ErrKeyNotFound)
		}
		return bucket.Delete([]byte(key))
	})
}

func (t *table) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := t.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(t.bucket))
		if bucket == nil {
			return fmt.Errorf("table %s: %w", t.bucket, storage.ErrNotInitialized)
		}
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Reload writes every entry in a single transaction.
func (t *table) Reload(ctx context.Context, contents map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(t.bucket))
		if bucket == nil {
			return fmt.Errorf("table %s: %w", t.bucket, storage.ErrNotInitialized)
		}
		for key, v := range contents {
			payload, err := t.codec.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %s[%s]: %w", t.bucket, key, err)
			}
			if err := bucket.Put([]byte(key), payload); err != nil {
				return fmt.Errorf("store %s[%s]: %w", t.bucket, key, err)
			}
		}
		return nil
	})
}
