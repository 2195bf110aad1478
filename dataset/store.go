package dataset

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound is returned for an unknown or evicted dataset ID.
var ErrNotFound = errors.New("dataset: not found")

// Store keeps the most recently uploaded datasets in memory.
type Store struct {
	cache *lru.Cache[string, *Dataset]
	now   func() time.Time
}

// NewStore returns a Store holding at most size datasets.
func NewStore(size int) (*Store, error) {
	cache, err := lru.New[string, *Dataset](size)
	if err != nil {
		return nil, fmt.Errorf("dataset: create store: %w", err)
	}
	return &Store{cache: cache, now: time.Now}, nil
}

// Add assigns ds a new ID and stores it.
func (s *Store) Add(filename string, ds *Dataset) string {
	ds.ID = uuid.NewString()
	ds.Filename = filename
	ds.UploadedAt = s.now().UTC()
	s.cache.Add(ds.ID, ds)
	return ds.ID
}

// Get returns a stored dataset and marks it recently used.
func (s *Store) Get(id string) (*Dataset, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	ds, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return ds, nil
}

// Len returns the number of cached datasets.
func (s *Store) Len() int {
	return s.cache.Len()
}
