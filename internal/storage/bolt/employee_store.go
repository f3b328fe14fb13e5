package bolt

import (
	"context"
	"fmt"

	"github.com/goodtune/breakwatch/internal/storage"
	"go.etcd.io/bbolt"
)

type employeeStore struct {
	db *bbolt.DB
}

func (s *employeeStore) Register(ctx context.Context, emp storage.Employee) error {
	data, err := marshal(emp)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketEmployees))
		if b == nil {
			return fmt.Errorf("employees bucket missing")
		}
		if b.Get([]byte(emp.ID)) != nil {
			return storage.ErrDuplicate
		}
		return b.Put([]byte(emp.ID), data)
	})
}

func (s *employeeStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := getBucketValue[storage.Employee](ctx, s.db, bucketEmployees, id)
	if err == storage.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *employeeStore) List(ctx context.Context) ([]storage.Employee, error) {
	return listBucket[storage.Employee](ctx, s.db, bucketEmployees)
}
