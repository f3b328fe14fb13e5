package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/breakwatch/internal/storage"
	"github.com/redis/go-redis/v9"
)

type auditStore struct {
	client *redis.Client
}

// Append adds the record to the sorted set and bumps the per-day counter
// in one pipeline.
func (s *auditStore) Append(ctx context.Context, rec storage.CompletedRecord) error {
	if rec.ID == "" {
		id, err := randomID()
		if err != nil {
			return err
		}
		rec.ID = id
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, keyAudit, redis.Z{
		Score:  float64(rec.StartTime.UnixNano()),
		Member: string(data),
	})
	pipe.HIncrBy(ctx, countsKey(rec.StartDate()), countField(rec.EmployeeID, rec.BreakType), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *auditStore) CountByDay(ctx context.Context, employeeID, breakType, date string) (int, error) {
	count, err := s.client.HGet(ctx, countsKey(date), countField(employeeID, breakType)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get daily count: %w", err)
	}
	return count, nil
}

func (s *auditStore) QueryRange(ctx context.Context, from, to time.Time) ([]storage.CompletedRecord, error) {
	members, err := s.client.ZRangeByScore(ctx, keyAudit, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", from.UnixNano()),
		Max: fmt.Sprintf("(%d", to.UnixNano()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("query audit range: %w", err)
	}

	records := make([]storage.CompletedRecord, 0, len(members))
	for _, member := range members {
		var rec storage.CompletedRecord
		if err := json.Unmarshal([]byte(member), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *auditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	removed, err := s.client.ZRemRangeByScore(ctx, keyAudit,
		"-inf", fmt.Sprintf("(%d", cutoff.UnixNano())).Result()
	if err != nil {
		return 0, fmt.Errorf("delete audit records: %w", err)
	}
	return int(removed), nil
}

func randomID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
