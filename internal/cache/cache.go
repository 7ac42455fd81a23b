package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "social_listening_cache_lookups_total",
		Help: "Result cache lookups by outcome",
	},
	[]string{"result"},
)

type entry[V any] struct {
	value     V
	alertID   int64
	expiresAt time.Time
}

// Cache is a TTL cache for query results, indexed by alert so an alert's
// results can be dropped after its data was edited
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[V]
	now     func() time.Time
}

// New creates a cache whose entries live for ttl
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Key derives the cache key of a scope fetched by actor with limit. Platform
// order does not matter.
func Key(actor string, p query.Params, limit int) string {
	platforms := make([]string, 0, len(p.Platforms))
	for _, pl := range p.Platforms {
		platforms = append(platforms, string(pl))
	}
	sort.Strings(platforms)

	raw := fmt.Sprintf("%s|%d|%s|%s|%s|%s|%d",
		actor, p.AlertID, strings.Join(platforms, ","),
		p.Start.UTC().Format(time.RFC3339Nano), p.End.UTC().Format(time.RFC3339Nano), p.Sentiment, limit)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Get returns a live entry. Expired entries are removed on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		lookups.WithLabelValues("miss").Inc()
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		lookups.WithLabelValues("expired").Inc()
		return zero, false
	}
	lookups.WithLabelValues("hit").Inc()
	return e.value, true
}

// Set stores value for key under alertID
func (c *Cache[V]) Set(key string, alertID int64, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, alertID: alertID, expiresAt: c.now().Add(c.ttl)}
}

// InvalidateAlert drops every entry of alertID and returns how many were removed
func (c *Cache[V]) InvalidateAlert(alertID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.alertID == alertID {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// PurgeExpired drops expired entries and returns how many were removed
func (c *Cache[V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MentionCache caches fetched mention sets
type MentionCache = Cache[[]models.Mention]
