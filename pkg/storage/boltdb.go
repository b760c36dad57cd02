package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketRemediations = []byte("remediations")
	bucketTransitions  = []byte("transitions")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sentinel.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRemediations, bucketTransitions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveRemediations replaces the stored timestamps for key. An empty slice
// removes the key.
func (s *BoltStore) SaveRemediations(key string, stamps []time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRemediations)
		if len(stamps) == 0 {
			return b.Delete([]byte(key))
		}
		data, err := json.Marshal(stamps)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) LoadRemediations() (map[string][]time.Time, error) {
	records := make(map[string][]time.Time)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRemediations)
		return b.ForEach(func(k, v []byte) error {
			var stamps []time.Time
			if err := json.Unmarshal(v, &stamps); err != nil {
				return fmt.Errorf("decode remediations for %s: %w", k, err)
			}
			records[string(k)] = stamps
			return nil
		})
	})
	return records, err
}

// AppendTransition stores t under the bucket's next sequence number so that
// iteration order is insertion order.
func (s *BoltStore) AppendTransition(t types.Transition) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTransitions)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
}

// ListTransitions returns up to limit most recent transitions, oldest first.
// A limit of zero or less returns all of them.
func (s *BoltStore) ListTransitions(limit int) ([]types.Transition, error) {
	var transitions []types.Transition
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTransitions).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(transitions) >= limit {
				break
			}
			var t types.Transition
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			transitions = append(transitions, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(transitions)-1; i < j; i, j = i+1, j-1 {
		transitions[i], transitions[j] = transitions[j], transitions[i]
	}
	return transitions, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
