package retention

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// AcquireLock takes or re-extends the advisory lock for a record. The same
// holder extends idempotently; a different holder is refused. Locks have no
// timeout and persist until released.
func (s *Store) AcquireLock(ctx context.Context, lockKey, holder string) (*RecordLock, error) {
	lock := RecordLock{LockKey: lockKey, Holder: holder}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO record_locks (lock_key, holder, acquired_at, extended_at)
    VALUES ($1, $2, now(), now())
    ON CONFLICT (lock_key) DO UPDATE SET extended_at = now()
    WHERE record_locks.holder = EXCLUDED.holder
    RETURNING acquired_at, extended_at
  `, lockKey, holder).Scan(&lock.AcquiredAt, &lock.ExtendedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

func (s *Store) ReleaseLock(ctx context.Context, lockKey, holder string) error {
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM record_locks
    WHERE lock_key = $1 AND holder = $2
  `, lockKey, holder)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = s.DB.QueryRow(ctx, `
    SELECT holder
    FROM record_locks
    WHERE lock_key = $1
  `, lockKey).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrLockNotFound
	}
	if err != nil {
		return err
	}
	return ErrLockHolderMismatch
}

func (s *Store) GetLock(ctx context.Context, lockKey string) (*RecordLock, error) {
	lock := RecordLock{LockKey: lockKey}
	err := s.DB.QueryRow(ctx, `
    SELECT holder, acquired_at, extended_at
    FROM record_locks
    WHERE lock_key = $1
  `, lockKey).Scan(&lock.Holder, &lock.AcquiredAt, &lock.ExtendedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}
