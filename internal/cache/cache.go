// Package cache keeps compiled third-party libraries between builds.
//
// Every (library, target, profile) triple owns a directory under the
// third-party build root. The directory existing is the only signal that the
// library is compiled: nothing is hashed on the hot path. Alongside, a BoltDB
// file records what each directory was compiled from, so a recipe that changed
// since can be reported as stale without being rebuilt.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Norgate-AV/bundler/internal/library"
)

const (
	// DBName is the metadata file inside the cache root
	DBName = "cache.db"

	// bucketName is the BoltDB bucket name for cache entries
	bucketName = "libraries"
)

// Cache manages compiled library directories and their metadata
type Cache struct {
	db   *bbolt.DB
	root string
}

// Open creates or opens the cache rooted at dir
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, DBName), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{
		db:   db,
		root: dir,
	}, nil
}

// Close closes the cache database
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}

// Root is the directory the cache lives in
func (c *Cache) Root() string {
	return c.root
}

// Hit reports whether the compilation directory of a library already exists
func (c *Cache) Hit(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Get retrieves the entry for key. Returns nil if nothing was recorded.
func (c *Cache) Get(key library.Key) (*Entry, error) {
	var entry *Entry

	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key.String()))
		if data == nil {
			return nil
		}

		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	return entry, nil
}

// Store records the entry of a freshly compiled library
func (c *Cache) Store(key library.Key, entry Entry) error {
	entry.Key = key.String()
	entry.Name = key.Name
	entry.Target = key.Target.String()
	entry.Profile = key.Profile

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return tx.Bucket([]byte(bucketName)).Put([]byte(entry.Key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// Dir is the compilation directory of key under the cache root
func (c *Cache) Dir(key library.Key) string {
	return filepath.Join(c.root, key.Target.String(), key.Profile, key.Name)
}

// Forget removes the compilation directory of key and its entry, so the
// next build compiles it again
func (c *Cache) Forget(key library.Key, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key.String()))
	})
}

// Entries returns every recorded entry ordered by key
func (c *Cache) Entries() ([]Entry, error) {
	var entries []Entry

	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, data []byte) error {
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				return err
			}

			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Clear removes all cache entries and every compiled library
func (c *Cache) Clear() error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear cache entries: %w", err)
	}

	children, err := os.ReadDir(c.root)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, child := range children {
		if child.Name() == DBName {
			continue
		}

		if err := os.RemoveAll(filepath.Join(c.root, child.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", child.Name(), err)
		}
	}

	return nil
}

// Stats returns the number of entries and the total size of compiled files
func (c *Cache) Stats() (int, int64, error) {
	var count int
	var totalSize int64

	err := c.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	err = filepath.Walk(c.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !info.IsDir() && info.Name() != DBName {
			totalSize += info.Size()
		}

		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return count, totalSize, nil
}
