package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/scraper"
	"github.com/patrickmn/go-cache"
)

// Cache holds extraction outcomes for keys built with Key, so a batch can
// skip queries it already ran.
type Cache interface {
	Get(key string) (scraper.ExtractionOutcome, bool)
	Set(key string, value scraper.ExtractionOutcome)
	Delete(key string)
	Clear()
	Stats() CacheStats
}

type CacheStats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Evictions  int64     `json:"evictions"`
	Size       int       `json:"size"`
	LastAccess time.Time `json:"last_access"`
}

type entry struct {
	outcome  scraper.ExtractionOutcome
	storedAt time.Time
}

type ResultCache struct {
	cache   *cache.Cache
	mu      sync.Mutex
	stats   CacheStats
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

func NewCache(maxSize int, ttl time.Duration) *ResultCache {
	return &ResultCache{
		cache:   cache.New(ttl, ttl*2),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *ResultCache) Get(key string) (scraper.ExtractionOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.stats.LastAccess = now

	if data, found := c.cache.Get(key); found {
		// go-cache only purges on its janitor tick; age is checked here too.
		if e, ok := data.(entry); ok && now.Sub(e.storedAt) < c.ttl {
			c.stats.Hits++
			return e.outcome, true
		}
		c.cache.Delete(key)
	}

	c.stats.Misses++
	return scraper.ExtractionOutcome{}, false
}

func (c *ResultCache) Set(key string, value scraper.ExtractionOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache.Get(key); !exists && c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.removeOldest()
	}

	c.cache.Set(key, entry{outcome: value, storedAt: c.now()}, cache.DefaultExpiration)
}

func (c *ResultCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(key)
}

func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	c.stats = CacheStats{}
}

func (c *ResultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Size = c.cache.ItemCount()
	return c.stats
}

// removeOldest evicts the entry that was stored first.
func (c *ResultCache) removeOldest() {
	var oldestKey string
	var oldest time.Time

	for key, item := range c.cache.Items() {
		e, ok := item.Object.(entry)
		if !ok {
			continue
		}
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey = key
			oldest = e.storedAt
		}
	}

	if oldestKey != "" {
		c.cache.Delete(oldestKey)
		c.stats.Evictions++
	}
}

// Key builds the result:<bench>:<date>:<list-type> key for a query run on day.
// The list type is the query's case type, number and year.
func Key(q scraper.SearchQuery, day time.Time) string {
	listType := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(q.CaseType)),
		strings.TrimSpace(q.CaseNumber),
		strings.TrimSpace(q.Year),
	}, "-")
	return fmt.Sprintf("result:%s:%s:%s",
		strings.ToLower(strings.TrimSpace(q.Bench)), day.Format("2006-01-02"), listType)
}
