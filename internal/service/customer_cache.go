package service

import (
	"sync"
	"time"

	"github.com/set-night/npsbot/internal/domain"
)

type cachedCustomer struct {
	customer *domain.Customer
	cachedAt time.Time
}

// CustomerCache keeps CRM lookups by e-mail for a fixed ttl.
type CustomerCache struct {
	mu      sync.RWMutex
	entries map[string]cachedCustomer
	ttl     time.Duration
	now     func() time.Time
}

func NewCustomerCache(ttl time.Duration) *CustomerCache {
	return &CustomerCache{
		entries: make(map[string]cachedCustomer),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *CustomerCache) Get(email string) *domain.Customer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[email]
	if !ok || c.now().Sub(e.cachedAt) > c.ttl {
		return nil
	}
	return e.customer
}

func (c *CustomerCache) Set(email string, customer *domain.Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[email] = cachedCustomer{customer: customer, cachedAt: c.now()}
}

// Purge drops expired entries.
func (c *CustomerCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if c.now().Sub(e.cachedAt) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
