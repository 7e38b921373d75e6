package authfake

import (
	"sync"
	"time"
)

// RevokedTokens remembers the jti of logged-out and superseded tokens until
// they would have expired anyway.
type RevokedTokens struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func NewRevokedTokens() *RevokedTokens {
	return &RevokedTokens{
		revoked: make(map[string]time.Time),
	}
}

func (c *RevokedTokens) Add(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
}

func (c *RevokedTokens) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

// Cleanup drops entries whose token has expired by now.
func (c *RevokedTokens) Cleanup(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
			removed++
		}
	}
	return removed
}
