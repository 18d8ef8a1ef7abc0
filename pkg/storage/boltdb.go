package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cuemby/autoscaler/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names, nested under the namespace bucket
	bucketPlans      = []byte("plans")
	bucketFormations = []byte("formations")
	bucketAppPlans   = []byte("app_plans")
	bucketHolidays   = []byte("market_holidays")

	documentBuckets = [][]byte{bucketPlans, bucketFormations, bucketAppPlans, bucketHolidays}
)

// Options control how the bolt file is opened
type Options struct {
	// ReadOnly opens the file with a shared lock; the namespace must exist
	ReadOnly bool

	// Timeout bounds the wait for the file lock (default 5s)
	Timeout time.Duration
}

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db        *bolt.DB
	namespace []byte
}

// NewBoltStore opens the bolt file at path and scopes every document bucket
// under the namespace bucket (the configured database name).
func NewBoltStore(path, namespace string, opts Options) (*BoltStore, error) {
	if namespace == "" {
		return nil, fmt.Errorf("store namespace must not be empty")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ns := []byte(namespace)
	if opts.ReadOnly {
		err = db.View(func(tx *bolt.Tx) error {
			if tx.Bucket(ns) == nil {
				return fmt.Errorf("database %q not found in %s", namespace, path)
			}
			return nil
		})
	} else {
		err = db.Update(func(tx *bolt.Tx) error {
			root, err := tx.CreateBucketIfNotExists(ns)
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", ns, err)
			}
			for _, bucket := range documentBuckets {
				if _, err := root.CreateBucketIfNotExists(bucket); err != nil {
					return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
				}
			}
			return nil
		})
	}

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, namespace: ns}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// bucket resolves a document bucket inside the namespace. A read-only
// handle on a namespace created by an older import may lack a bucket.
func (s *BoltStore) bucket(tx *bolt.Tx, name []byte) *bolt.Bucket {
	root := tx.Bucket(s.namespace)
	if root == nil {
		return nil
	}
	return root.Bucket(name)
}

func (s *BoltStore) put(name []byte, key string, v any) error {
	if key == "" {
		return fmt.Errorf("%s: document key must not be empty", name)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := s.bucket(tx, name)
		if b == nil {
			return fmt.Errorf("bucket %s not found", name)
		}
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) get(name []byte, key string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := s.bucket(tx, name)
		if b == nil {
			return fmt.Errorf("%s %s: %w", name, key, ErrNotFound)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", name, key, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

func (s *BoltStore) delete(name []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := s.bucket(tx, name)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// list decodes every document in a bucket, in key order
func list[T any](s *BoltStore, name []byte) ([]*T, error) {
	var out []*T
	err := s.db.View(func(tx *bolt.Tx) error {
		b := s.bucket(tx, name)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var doc T
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decode %s/%s: %w", name, k, err)
			}
			out = append(out, &doc)
			return nil
		})
	})
	return out, err
}

// Plan operations
func (s *BoltStore) PutPlan(plan *types.Plan) error {
	return s.put(bucketPlans, plan.ID, plan)
}

func (s *BoltStore) ListPlans() ([]*types.Plan, error) {
	return list[types.Plan](s, bucketPlans)
}

func (s *BoltStore) DeletePlan(id string) error {
	return s.delete(bucketPlans, id)
}

// Formation operations
func (s *BoltStore) PutFormation(formation *types.Formation) error {
	return s.put(bucketFormations, formation.ID, formation)
}

func (s *BoltStore) ListFormations() ([]*types.Formation, error) {
	return list[types.Formation](s, bucketFormations)
}

func (s *BoltStore) DeleteFormation(id string) error {
	return s.delete(bucketFormations, id)
}

// App plan operations
func (s *BoltStore) PutApp(app *types.ManagedApp) error {
	return s.put(bucketAppPlans, app.AppName, app)
}

func (s *BoltStore) GetApp(name string) (*types.ManagedApp, error) {
	var app types.ManagedApp
	if err := s.get(bucketAppPlans, name, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *BoltStore) ListApps() ([]*types.ManagedApp, error) {
	return list[types.ManagedApp](s, bucketAppPlans)
}

func (s *BoltStore) ListEnabledApps() ([]*types.ManagedApp, error) {
	apps, err := s.ListApps()
	if err != nil {
		return nil, err
	}

	var enabled []*types.ManagedApp
	for _, app := range apps {
		if app.Enabled {
			enabled = append(enabled, app)
		}
	}
	return enabled, nil
}

func (s *BoltStore) DeleteApp(name string) error {
	return s.delete(bucketAppPlans, name)
}

// Holiday operations
func (s *BoltStore) PutHolidays(cal *types.HolidayCalendar) error {
	if cal.Year <= 0 {
		return fmt.Errorf("holiday calendar year must be positive, got %d", cal.Year)
	}
	return s.put(bucketHolidays, strconv.Itoa(cal.Year), cal)
}

func (s *BoltStore) GetHolidays(year int) (*types.HolidayCalendar, error) {
	var cal types.HolidayCalendar
	if err := s.get(bucketHolidays, strconv.Itoa(year), &cal); err != nil {
		return nil, err
	}
	return &cal, nil
}

// IsNotFound reports whether err is (or wraps) ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
