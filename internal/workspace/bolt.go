package workspace

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"modelr/internal/rock"
	"modelr/internal/scenario"
)

var (
	bucketScenarios = []byte("scenarios")
	bucketRocks     = []byte("rocks")
	bucketMeta      = []byte("meta")
	keyCurrent      = []byte("current")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the workspace database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketScenarios, bucketRocks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveScenario(snap scenario.Snapshot) error {
	if snap.Name == "" {
		return fmt.Errorf("save scenario: empty name")
	}
	return s.put(bucketScenarios, snap.Name, snap)
}

func (s *BoltStore) GetScenario(name string) (*scenario.Snapshot, error) {
	var snap scenario.Snapshot
	if err := s.get(bucketScenarios, name, &snap); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	return &snap, nil
}

// DeleteScenario removes a snapshot and clears the current pointer if it named it.
func (s *BoltStore) DeleteScenario(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketScenarios).Delete([]byte(name)); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if string(meta.Get(keyCurrent)) == name {
			return meta.Delete(keyCurrent)
		}
		return nil
	})
}

// ListScenarios returns scenario names in key order.
func (s *BoltStore) ListScenarios() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketScenarios)
		names = make([]string, 0, b.Stats().KeyN)
		return b.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

func (s *BoltStore) SaveRock(r rock.Rock) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return s.put(bucketRocks, r.Name, r)
}

func (s *BoltStore) GetRock(name string) (*rock.Rock, error) {
	var r rock.Rock
	if err := s.get(bucketRocks, name, &r); err != nil {
		return nil, fmt.Errorf("rock %s: %w", name, err)
	}
	return &r, nil
}

func (s *BoltStore) DeleteRock(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRocks)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("rock %s: %w", name, ErrNotFound)
		}
		return b.Delete([]byte(name))
	})
}

func (s *BoltStore) ListRocks() ([]rock.Rock, error) {
	var rocks []rock.Rock
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRocks)
		rocks = make([]rock.Rock, 0, b.Stats().KeyN)
		return b.ForEach(func(_, v []byte) error {
			var r rock.Rock
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			rocks = append(rocks, r)
			return nil
		})
	})
	return rocks, err
}

func (s *BoltStore) SetCurrent(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyCurrent, []byte(name))
	})
}

// Current returns the current scenario name, or ErrNotFound if none is set.
func (s *BoltStore) Current() (string, error) {
	var name string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyCurrent)
		if v == nil {
			return fmt.Errorf("current scenario: %w", ErrNotFound)
		}
		name = string(v)
		return nil
	})
	return name, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) put(bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) get(bucket []byte, key string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, v)
	})
}
