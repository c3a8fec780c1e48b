package knock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize bounds the number of cached public clients
const DefaultCacheSize = 64

// ClientStore holds public clients keyed by token and environment
type ClientStore interface {
	Get(key string) (*PublicClient, bool)
	Add(key string, client *PublicClient)
	Len() int
}

type lruStore struct {
	cache *lru.Cache[string, *PublicClient]
}

// NewLRUStore creates a size bounded ClientStore
func NewLRUStore(size int) (ClientStore, error) {
	cache, err := lru.New[string, *PublicClient](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create client cache: %w", err)
	}
	return &lruStore{cache: cache}, nil
}

func (s *lruStore) Get(key string) (*PublicClient, bool) {
	return s.cache.Get(key)
}

func (s *lruStore) Add(key string, client *PublicClient) {
	s.cache.Add(key, client)
}

func (s *lruStore) Len() int {
	return s.cache.Len()
}

// ClientCache deduplicates concurrent creation of public clients.
// Concurrent callers for the same key share one creation.
type ClientCache struct {
	mu    sync.Mutex
	store ClientStore
	group singleflight.Group
}

// NewClientCache wraps a store; a nil store gets an LRU of DefaultCacheSize
func NewClientCache(store ClientStore) (*ClientCache, error) {
	if store == nil {
		var err error
		store, err = NewLRUStore(DefaultCacheSize)
		if err != nil {
			return nil, err
		}
	}
	return &ClientCache{store: store}, nil
}

// GetOrCreate returns the cached client for key or builds one with create
func (c *ClientCache) GetOrCreate(key string, create func() (*PublicClient, error)) (*PublicClient, error) {
	if client, ok := c.get(key); ok {
		return client, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another caller may have finished while we waited
		if client, ok := c.get(key); ok {
			return client, nil
		}

		client, err := create()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.store.Add(key, client)
		c.mu.Unlock()

		return client, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*PublicClient), nil
}

// Len returns the number of cached clients
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

func (c *ClientCache) get(key string) (*PublicClient, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(key)
}

func cacheKey(token, environment string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8]) + ":" + environment
}
