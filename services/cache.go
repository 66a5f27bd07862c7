package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ReportCacheTTL = 5 * time.Minute

// CacheService keeps report payloads per tenant. Keys embed a tenant version
// counter, so bumping the counter invalidates every cached report at once.
// A nil client turns every call into a miss.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client) *CacheService {
	return &CacheService{client: client, ttl: ReportCacheTTL}
}

func (s *CacheService) Enabled() bool {
	return s != nil && s.client != nil
}

func versionKey(tenantID string) string {
	return fmt.Sprintf("fin:%s:v", tenantID)
}

func (s *CacheService) key(ctx context.Context, tenantID, name string) (string, error) {
	version, err := s.client.Get(ctx, versionKey(tenantID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("fin:%s:%d:%s", tenantID, version, name), nil
}

// Get decodes a cached value into dest and reports whether it was found.
func (s *CacheService) Get(ctx context.Context, tenantID, name string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	key, err := s.key(ctx, tenantID, name)
	if err != nil {
		return false
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (s *CacheService) Set(ctx context.Context, tenantID, name string, value interface{}) error {
	if !s.Enabled() {
		return nil
	}
	key, err := s.key(ctx, tenantID, name)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, s.ttl).Err()
}

// Invalidate drops every cached report of the tenant.
func (s *CacheService) Invalidate(ctx context.Context, tenantID string) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Incr(ctx, versionKey(tenantID)).Err()
}
