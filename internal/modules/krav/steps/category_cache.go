package steps

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/kravdesk/kravdesk-backend/internal/data/repos"
)

// CategoryCache is the in-memory raw→canonical map backing normalization.
// It is owned and injected by whoever constructs the normalizer, loaded once
// per session and explicitly invalidated when the mapping table is mutated
// from outside.
type CategoryCache struct {
	mu       sync.RWMutex
	loaded   bool
	exact    map[string]string
	ciIndex  map[string]string
	mappings repos.CategoryMappingRepo
}

func NewCategoryCache(mappings repos.CategoryMappingRepo) *CategoryCache {
	return &CategoryCache{
		exact:    map[string]string{},
		ciIndex:  map[string]string{},
		mappings: mappings,
	}
}

// Load reads the full mapping table. Repeated calls are no-ops until
// Invalidate.
func (c *CategoryCache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	rows, err := c.mappings.GetAll(ctx, nil)
	if err != nil {
		return err
	}
	c.exact = make(map[string]string, len(rows))
	c.ciIndex = make(map[string]string, len(rows))
	for _, m := range rows {
		if m == nil {
			continue
		}
		c.exact[m.SourceCategory] = m.TargetCategory
		c.ciIndex[strings.ToLower(m.SourceCategory)] = m.TargetCategory
	}
	c.loaded = true
	return nil
}

func (c *CategoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.exact = map[string]string{}
	c.ciIndex = map[string]string{}
}

func (c *CategoryCache) Get(raw string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.exact[raw]
	return v, ok
}

// GetFold looks up raw case-insensitively.
func (c *CategoryCache) GetFold(raw string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.ciIndex[strings.ToLower(raw)]
	return v, ok
}

func (c *CategoryCache) Put(raw, canonical string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exact[raw] = canonical
	c.ciIndex[strings.ToLower(raw)] = canonical
}

// Canonicals returns the distinct canonical categories currently known,
// sorted so downstream prompt text is stable across runs.
func (c *CategoryCache) Canonicals() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := map[string]bool{}
	out := make([]string, 0, len(c.exact))
	for _, v := range c.exact {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
