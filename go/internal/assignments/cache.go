package assignments

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mcdev12/queuetimer/go/internal/session"
)

// CacheKey is where the ids of assignments created by this client are kept
const CacheKey = "queuetimer.assignments"

// Cache remembers which assignments this client created. The service has no
// list endpoint, so this is the only way to find them again.
type Cache struct {
	store session.Store
}

func NewCache(store session.Store) *Cache {
	return &Cache{store: store}
}

func (c *Cache) IDs() ([]int, error) {
	raw, ok, err := c.store.Get(CacheKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read assignment cache: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var ids []int
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode assignment cache: %w", err)
	}
	return ids, nil
}

func (c *Cache) Add(id int) error {
	ids, err := c.IDs()
	if err != nil {
		return err
	}
	if slices.Contains(ids, id) {
		return nil
	}
	return c.save(append(ids, id))
}

func (c *Cache) Remove(id int) error {
	ids, err := c.IDs()
	if err != nil {
		return err
	}
	idx := slices.Index(ids, id)
	if idx < 0 {
		return nil
	}
	return c.save(slices.Delete(ids, idx, idx+1))
}

func (c *Cache) save(ids []int) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode assignment cache: %w", err)
	}
	if err := c.store.Set(CacheKey, string(data)); err != nil {
		return fmt.Errorf("failed to write assignment cache: %w", err)
	}
	return nil
}
