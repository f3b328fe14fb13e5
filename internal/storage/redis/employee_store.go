package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goodtune/breakwatch/internal/storage"
	"github.com/redis/go-redis/v9"
)

type employeeStore struct {
	client *redis.Client
}

func (s *employeeStore) Register(ctx context.Context, emp storage.Employee) error {
	data, err := json.Marshal(emp)
	if err != nil {
		return fmt.Errorf("marshal employee: %w", err)
	}
	set, err := s.client.HSetNX(ctx, keyEmployees, emp.ID, string(data)).Result()
	if err != nil {
		return fmt.Errorf("register employee: %w", err)
	}
	if !set {
		return storage.ErrDuplicate
	}
	return nil
}

func (s *employeeStore) Exists(ctx context.Context, id string) (bool, error) {
	exists, err := s.client.HExists(ctx, keyEmployees, id).Result()
	if err != nil {
		return false, fmt.Errorf("check employee: %w", err)
	}
	return exists, nil
}

func (s *employeeStore) List(ctx context.Context) ([]storage.Employee, error) {
	data, err := s.client.HGetAll(ctx, keyEmployees).Result()
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	employees := make([]storage.Employee, 0, len(data))
	for _, raw := range data {
		var emp storage.Employee
		if err := json.Unmarshal([]byte(raw), &emp); err != nil {
			return nil, fmt.Errorf("unmarshal employee: %w", err)
		}
		employees = append(employees, emp)
	}
	return employees, nil
}
