package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/buildhive/buildhive/pkg/types"
)

var bucketRuns = []byte("runs")

// Store is the persisted teardown ledger. Every orchestration run records
// what it provisioned, keyed by cluster name, so a crashed run can still
// be cleaned up by a later invocation.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the ledger under the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the ledger
func (s *Store) Close() error {
	return s.db.Close()
}

// PutRun upserts a run record
func (s *Store) PutRun(record *types.RunRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.ClusterName), data)
	})
}

// GetRun retrieves a run record by cluster name
func (s *Store) GetRun(clusterName string) (*types.RunRecord, error) {
	var record types.RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data := b.Get([]byte(clusterName))
		if data == nil {
			return fmt.Errorf("run not found: %s", clusterName)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRuns returns all recorded runs
func (s *Store) ListRuns() ([]*types.RunRecord, error) {
	var records []*types.RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		return b.ForEach(func(k, v []byte) error {
			var record types.RunRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			return nil
		})
	})
	return records, err
}

// DeleteRun removes a run record after its teardown completed
func (s *Store) DeleteRun(clusterName string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		return b.Delete([]byte(clusterName))
	})
}
