package syncstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketLastSync = []byte("last_sync")

// CachedStatus is the per-source metadata worth keeping across restarts.
// Logs and notifications are deliberately not persisted.
type CachedStatus struct {
	LastSync  time.Time `json:"lastSync"`
	ItemCount int       `json:"itemCount"`
}

// LastSyncCache persists last completed run metadata in a small bbolt file
// so a freshly started dashboard shows last-sync times before the first
// poll lands.
type LastSyncCache struct {
	db *bolt.DB
}

// OpenLastSyncCache opens (creating if needed) the cache file at path.
func OpenLastSyncCache(path string) (*LastSyncCache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLastSync)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &LastSyncCache{db: db}, nil
}

// Load returns every cached source entry. Entries that fail to decode are
// skipped; a torn write must not block startup.
func (c *LastSyncCache) Load() (map[Source]CachedStatus, error) {
	out := map[Source]CachedStatus{}
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketLastSync)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var status CachedStatus
			if err := json.Unmarshal(v, &status); err != nil {
				return nil
			}
			out[Source(k)] = status
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save upserts the entry for source.
func (c *LastSyncCache) Save(source Source, status CachedStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLastSync).Put([]byte(source), data)
	})
}

func (c *LastSyncCache) Close() error {
	return c.db.Close()
}
