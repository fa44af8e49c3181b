// ABOUTME: Redis-backed dedupe of profile sync payloads with a Bloom front
// ABOUTME: Skips engage calls when a distinct ID's payload is unchanged

package profilecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/redis/go-redis/v9"

	"github.com/percept-io/percept/internal/analytics"
)

// Default cache configuration values.
const (
	DefaultTTL               = 24 * time.Hour
	DefaultKeyPrefix         = "percept:profile:"
	DefaultExpectedProfiles  = 1_000_000
	DefaultFalsePositiveRate = 0.01
)

// Config holds configuration for the profile cache.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Password for Redis authentication (optional).
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix is prepended to distinct IDs to form cache keys.
	KeyPrefix string

	// TTL bounds how long a synced payload suppresses re-syncs.
	TTL time.Duration

	// ExpectedProfiles sizes the Bloom filter.
	ExpectedProfiles uint

	// FalsePositiveRate for the Bloom filter.
	FalsePositiveRate float64
}

// setDefaults applies default values to unset fields.
func (c *Config) setDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.ExpectedProfiles == 0 {
		c.ExpectedProfiles = DefaultExpectedProfiles
	}
	if c.FalsePositiveRate == 0 {
		c.FalsePositiveRate = DefaultFalsePositiveRate
	}
}

// Cache implements the profile gate: a Bloom filter answers "never
// synced by this process" without a network hop, and Redis holds the
// digest of each distinct ID's last-synced payload.
//
// The cache fails open: any Redis error means "sync", so a cache
// outage degrades to duplicate engage calls, never to lost syncs.
type Cache struct {
	rdb    *redis.Client
	config Config
	logger *slog.Logger

	mu   sync.Mutex
	seen *bloom.BloomFilter
}

var _ analytics.ProfileGate = (*Cache)(nil)

// New creates a profile cache and verifies Redis connectivity.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Cache, error) {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &Cache{
		rdb:    rdb,
		config: cfg,
		logger: logger,
		seen:   bloom.NewWithEstimates(cfg.ExpectedProfiles, cfg.FalsePositiveRate),
	}, nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// ShouldSync reports whether the payload differs from the last one
// delivered for this distinct ID.
func (c *Cache) ShouldSync(ctx context.Context, distinctID any, props analytics.Properties) bool {
	id := idString(distinctID)

	c.mu.Lock()
	known := c.seen.TestString(id)
	c.mu.Unlock()
	if !known {
		// Definitely never synced by this process.
		return true
	}

	stored, err := c.rdb.Get(ctx, c.key(id)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("profile cache lookup failed", slog.Any("error", err))
		}
		return true
	}
	return stored != payloadDigest(props)
}

// MarkSynced records the payload as delivered.
func (c *Cache) MarkSynced(ctx context.Context, distinctID any, props analytics.Properties) {
	id := idString(distinctID)

	c.mu.Lock()
	c.seen.AddString(id)
	c.mu.Unlock()

	if err := c.rdb.Set(ctx, c.key(id), payloadDigest(props), c.config.TTL).Err(); err != nil {
		c.logger.Warn("profile cache store failed", slog.Any("error", err))
	}
}

func (c *Cache) key(id string) string {
	return c.config.KeyPrefix + id
}

func idString(id any) string {
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprint(id)
}

// payloadDigest hashes the canonical JSON encoding of the property
// bag. encoding/json writes map keys in sorted order, so equal bags
// always produce equal digests.
func payloadDigest(props analytics.Properties) string {
	data, err := json.Marshal(props)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
