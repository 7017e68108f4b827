package principalcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/cloud-tracker/models"
)

// DefaultKeyPrefix namespaces principal keys in Redis
const DefaultKeyPrefix = "cloud-tracker:principal:"

// record is the stored form. models.Principal hides the credential hash from JSON.
type record struct {
	UserID         uuid.UUID `json:"uid"`
	Identifier     string    `json:"id"`
	CredentialHash string    `json:"ch"`
	Authorities    []string  `json:"auth"`
}

// RedisBackend stores principals as JSON strings with a TTL
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBackend creates a RedisBackend. An empty prefix selects DefaultKeyPrefix.
func NewRedisBackend(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisBackend) key(identifier string) string {
	return r.prefix + normalize(identifier)
}

// Get implements Backend
func (r *RedisBackend) Get(ctx context.Context, identifier string) (*models.Principal, bool, error) {
	raw, err := r.client.Get(ctx, r.key(identifier)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decode cached principal: %w", err)
	}
	return &models.Principal{
		UserID:         rec.UserID,
		Identifier:     rec.Identifier,
		CredentialHash: rec.CredentialHash,
		Authorities:    rec.Authorities,
	}, true, nil
}

// Set implements Backend
func (r *RedisBackend) Set(ctx context.Context, identifier string, p *models.Principal) error {
	if p == nil {
		return errNilPrincipal
	}
	raw, err := json.Marshal(record{
		UserID:         p.UserID,
		Identifier:     p.Identifier,
		CredentialHash: p.CredentialHash,
		Authorities:    p.Authorities,
	})
	if err != nil {
		return fmt.Errorf("encode principal: %w", err)
	}
	if err := r.client.Set(ctx, r.key(identifier), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Backend
func (r *RedisBackend) Delete(ctx context.Context, identifier string) error {
	if err := r.client.Del(ctx, r.key(identifier)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
