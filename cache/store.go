package cache

import (
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/FlorianRuen/github-portfolio-proxy/config"
	"github.com/dgraph-io/ristretto/v2"
)

// average github body size used to size the admission counters
const expectedEntrySize = 2 * 1024

// Entry is a stored upstream response
type Entry struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Store keep upstream responses in memory, bounded by their body size in bytes
// entries expire after the configured TTL. Store is safe for concurrent use
type Store struct {
	items *ristretto.Cache[string, *Entry]
	ttl   time.Duration
}

func NewStore(cfg config.CacheConfig) (*Store, error) {
	if cfg.MaxSizeBytes <= 0 {
		return nil, errors.New("cache max size must be positive")
	}

	counters := max(cfg.MaxSizeBytes/expectedEntrySize*10, 1000)

	items, err := ristretto.NewCache(&ristretto.Config[string, *Entry]{
		NumCounters:        counters,
		MaxCost:            cfg.MaxSizeBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})

	if err != nil {
		return nil, errors.WrapIf(err, "unable to create response cache")
	}

	return &Store{
		items: items,
		ttl:   time.Duration(cfg.TTLSeconds) * time.Second,
	}, nil
}

// Get never return expired entries
func (s *Store) Get(key string) (*Entry, bool) {
	return s.items.Get(key)
}

// Set store the entry and wait for the write to be applied
// so a following Get for the same key is a hit. Return false when the entry was dropped
func (s *Store) Set(key string, entry *Entry) bool {
	if !s.items.SetWithTTL(key, entry, int64(len(entry.Body)), s.ttl) {
		return false
	}

	s.items.Wait()
	return true
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) Close() {
	s.items.Close()
}
