package bookcache

import (
	"fmt"
	"time"
)

const (
	// DefaultTTL is how long a snapshot stays usable.
	DefaultTTL = 24 * time.Hour

	// DefaultMaxBooks bounds the cached summaries.
	DefaultMaxBooks = 20

	// DefaultMaxViewportBooks bounds the recorded viewport ids.
	DefaultMaxViewportBooks = 10

	// checkKey is written and removed to test the store.
	checkKey = "__storage_test__"
)

// Key identifies the stored snapshot. Bumping Version orphans snapshots
// written in an older layout.
type Key struct {
	Name    string
	Version int
}

// DefaultKey is the well-known snapshot key, "bookCache_v1".
var DefaultKey = Key{Name: "bookCache", Version: 1}

// String renders the store key.
func (k Key) String() string {
	return fmt.Sprintf("%s_v%d", k.Name, k.Version)
}

// Config holds the manager configuration.
type Config struct {
	Key              Key
	TTL              time.Duration
	MaxBooks         int
	MaxViewportBooks int
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		Key:              DefaultKey,
		TTL:              DefaultTTL,
		MaxBooks:         DefaultMaxBooks,
		MaxViewportBooks: DefaultMaxViewportBooks,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Key.Name == "" {
		c.Key = d.Key
	}
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
	if c.MaxBooks <= 0 {
		c.MaxBooks = d.MaxBooks
	}
	if c.MaxViewportBooks <= 0 {
		c.MaxViewportBooks = d.MaxViewportBooks
	}
	return c
}
