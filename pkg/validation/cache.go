package validation

import (
	"fmt"
	"sync"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/goliatone/go-formvalidate/pkg/schema"
)

// DefaultCacheSize bounds a Cache built with size <= 0.
const DefaultCacheSize = 64

// Cache memoises compiled validators by the structural hash of the encoded
// document, annotations included so documents that only differ in messages
// do not share a validator. Entries are evicted oldest first. Safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	size    int
	entries map[uint64]*Validator
	order   []uint64
	hits    uint64
	misses  uint64
}

// NewCache returns a cache holding at most size validators.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{size: size, entries: make(map[uint64]*Validator, size)}
}

// Compile returns the cached validator for doc, compiling it on a miss.
func (c *Cache) Compile(doc schema.Document) (*Validator, error) {
	if c == nil {
		return Compile(doc)
	}
	key, err := Fingerprint(doc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if v, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return v, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err := Compile(doc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	if len(c.order) >= c.size {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = v
	c.order = append(c.order, key)
	return v, nil
}

// CompilePredicate is the cached form of the package level CompilePredicate.
func (c *Cache) CompilePredicate(doc schema.Document, node schema.Node) (*Validator, error) {
	return c.Compile(schema.Document{Root: node, Definitions: doc.Definitions})
}

// Len reports the number of cached validators.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Fingerprint hashes the annotated encoding of doc.
func Fingerprint(doc schema.Document) (uint64, error) {
	encoded := schema.Encode(doc, schema.WithAnnotations())
	hash, err := hashstructure.Hash(encoded, hashstructure.FormatV2, nil)
	if err != nil {
		return 0, fmt.Errorf("validation: fingerprint schema: %w", err)
	}
	return hash, nil
}
