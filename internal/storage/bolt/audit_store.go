package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goodtune/breakwatch/internal/storage"
	"go.etcd.io/bbolt"
)

type auditStore struct {
	db *bbolt.DB
}

// Append writes the record and increments the per-day counter for its
// start date in one transaction, so the counter never drifts from the log.
func (s *auditStore) Append(ctx context.Context, rec storage.CompletedRecord) error {
	if rec.ID == "" {
		key, err := recordKey(rec.StartTime)
		if err != nil {
			return err
		}
		rec.ID = key
	}
	data, err := marshal(rec)
	if err != nil {
		return err
	}
	countKey := dailyCountKey(rec.StartDate(), rec.EmployeeID, rec.BreakType)

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		audit := tx.Bucket([]byte(bucketAuditLog))
		if audit == nil {
			return fmt.Errorf("audit log bucket missing")
		}
		if err := audit.Put([]byte(rec.ID), data); err != nil {
			return err
		}

		counts := tx.Bucket([]byte(bucketDailyCounts))
		if counts == nil {
			return fmt.Errorf("daily counts bucket missing")
		}
		count := decodeCount(counts.Get([]byte(countKey)))
		return counts.Put([]byte(countKey), encodeCount(count+1))
	})
}

func (s *auditStore) CountByDay(ctx context.Context, employeeID, breakType, date string) (int, error) {
	key := dailyCountKey(date, employeeID, breakType)
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketDailyCounts))
		if b == nil {
			return nil
		}
		count = int(decodeCount(b.Get([]byte(key))))
		return nil
	})
	return count, err
}

// QueryRange scans the audit bucket, which is keyed by start time, so the
// result order is the append order.
func (s *auditStore) QueryRange(ctx context.Context, from, to time.Time) ([]storage.CompletedRecord, error) {
	records := make([]storage.CompletedRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketAuditLog))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		min := []byte(fmt.Sprintf("%020d", from.UnixNano()))
		for k, v := c.Seek(min); k != nil; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var rec storage.CompletedRecord
			if err := unmarshal(v, &rec); err != nil {
				return err
			}
			if !rec.StartTime.Before(to) {
				break
			}
			if rec.StartTime.Before(from) {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *auditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	return deleted, s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketAuditLog))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec storage.CompletedRecord
			if err := unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.StartTime.Before(cutoff) {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
}

func dailyCountKey(date, employeeID, breakType string) string {
	return fmt.Sprintf("%s/%s/%s", date, employeeID, breakType)
}

func encodeCount(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func decodeCount(data []byte) uint64 {
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}
