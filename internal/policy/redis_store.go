package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces role sets in Redis
const DefaultKeyPrefix = "bizobj:role:"

// RedisRoleStore keeps each role as a Redis set of permissions
type RedisRoleStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// KeyPrefix namespaces role keys
	KeyPrefix string
}

// NewRedisRoleStore connects to Redis and verifies the connection
func NewRedisRoleStore(ctx context.Context, cfg RedisConfig) (*RedisRoleStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisRoleStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisRoleStoreWithClient wraps an existing client
func NewRedisRoleStoreWithClient(client *redis.Client, prefix string) *RedisRoleStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisRoleStore{client: client, prefix: prefix}
}

func (s *RedisRoleStore) key(role string) string {
	return s.prefix + role
}

// Grant adds permissions to a role, creating it if needed
func (s *RedisRoleStore) Grant(ctx context.Context, role string, perms ...Permission) error {
	if len(perms) == 0 {
		return nil
	}
	members := make([]interface{}, len(perms))
	for i, p := range perms {
		members[i] = string(p)
	}
	if err := s.client.SAdd(ctx, s.key(role), members...).Err(); err != nil {
		return fmt.Errorf("grant %s: %w", role, err)
	}
	return nil
}

// Revoke removes permissions from a role
func (s *RedisRoleStore) Revoke(ctx context.Context, role string, perms ...Permission) error {
	if len(perms) == 0 {
		return nil
	}
	members := make([]interface{}, len(perms))
	for i, p := range perms {
		members[i] = string(p)
	}
	if err := s.client.SRem(ctx, s.key(role), members...).Err(); err != nil {
		return fmt.Errorf("revoke %s: %w", role, err)
	}
	return nil
}

// DeleteRole removes a role and all its permissions
func (s *RedisRoleStore) DeleteRole(ctx context.Context, role string) error {
	return s.client.Del(ctx, s.key(role)).Err()
}

// Import writes every role of a static table
func (s *RedisRoleStore) Import(ctx context.Context, roles StaticRoles) error {
	for name, perms := range roles {
		if err := s.Grant(ctx, name, perms...); err != nil {
			return err
		}
	}
	return nil
}

// Roles lists the stored role names in sorted order
func (s *RedisRoleStore) Roles(ctx context.Context) ([]string, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan roles: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Role loads a role, returning nil when it has no permissions
func (s *RedisRoleStore) Role(ctx context.Context, name string) (*Role, error) {
	members, err := s.client.SMembers(ctx, s.key(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("load role %s: %w", name, err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	sort.Strings(members)
	perms := make([]Permission, len(members))
	for i, m := range members {
		perms[i] = Permission(m)
	}
	return &Role{Name: name, Permissions: perms}, nil
}

// Close closes the Redis connection
func (s *RedisRoleStore) Close() error {
	return s.client.Close()
}
