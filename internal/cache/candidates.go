package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hyperifyio/dinecoach/internal/menu"
)

// DefaultCandidateTTL bounds how long redis keeps extraction results.
const DefaultCandidateTTL = 24 * time.Hour

// Candidates stores extracted menu candidates by content key. Extraction does
// not depend on preferences, so ranked output is never stored here.
type Candidates interface {
	Get(ctx context.Context, key string) ([]menu.Candidate, error)
	Put(ctx context.Context, key string, cands []menu.Candidate) error
}

// ContentKey identifies extraction input: kind ("html", "pdf", "pdf+ocr")
// plus a digest of the raw bytes.
func ContentKey(kind string, data []byte) string {
	return kind + ":" + hashKey(string(data))
}

// DiskCandidates keeps one JSON file per key under Dir.
type DiskCandidates struct {
	Dir         string
	StrictPerms bool
}

func (c *DiskCandidates) path(key string) string {
	return filepath.Join(c.Dir, hashKey(key)+candidateSuffix)
}

func (c *DiskCandidates) Get(_ context.Context, key string) ([]menu.Candidate, error) {
	if c == nil || c.Dir == "" {
		return nil, ErrMiss
	}
	p := c.path(key)
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var out []menu.Candidate
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return out, nil
}

func (c *DiskCandidates) Put(_ context.Context, key string, cands []menu.Candidate) error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	b, err := json.Marshal(nonNil(cands))
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	return writeAtomic(c.path(key), b, fileMode(c.StrictPerms))
}

// RedisCandidates shares extraction results between processes.
type RedisCandidates struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

// NewRedisCandidates connects to addr and verifies the connection.
func NewRedisCandidates(ctx context.Context, addr string, ttl time.Duration) (*RedisCandidates, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return &RedisCandidates{Client: client, TTL: ttl, Prefix: "dinecoach:candidates:"}, nil
}

func (c *RedisCandidates) Get(ctx context.Context, key string) ([]menu.Candidate, error) {
	b, err := c.Client.Get(ctx, c.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var out []menu.Candidate
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return out, nil
}

func (c *RedisCandidates) Put(ctx context.Context, key string, cands []menu.Candidate) error {
	b, err := json.Marshal(nonNil(cands))
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultCandidateTTL
	}
	if err := c.Client.Set(ctx, c.Prefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the redis connection pool.
func (c *RedisCandidates) Close() error { return c.Client.Close() }

func nonNil(c []menu.Candidate) []menu.Candidate {
	if c == nil {
		return []menu.Candidate{}
	}
	return c
}
