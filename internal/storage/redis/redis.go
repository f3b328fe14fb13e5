package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/breakwatch/internal/config"
	"github.com/goodtune/breakwatch/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	breakwatch:audit                   sorted set, score = start unix nanos
//	breakwatch:counts:<date>           hash, field "<emp>/<type>" -> count
//	breakwatch:employees               hash, field id -> employee JSON
const (
	keyAudit     = "breakwatch:audit"
	keyEmployees = "breakwatch:employees"
)

// Store implements the storage.Store interface using Redis.
type Store struct {
	client        *redis.Client
	auditStore    *auditStore
	employeeStore *employeeStore
}

// Open creates a new Redis-backed storage instance.
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:        client,
		auditStore:    &auditStore{client: client},
		employeeStore: &employeeStore{client: client},
	}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Audit returns the AuditStore implementation.
func (s *Store) Audit() storage.AuditStore {
	return s.auditStore
}

// Employees returns the EmployeeStore implementation.
func (s *Store) Employees() storage.EmployeeStore {
	return s.employeeStore
}

func countsKey(date string) string {
	return "breakwatch:counts:" + date
}

func countField(employeeID, breakType string) string {
	return employeeID + "/" + breakType
}
