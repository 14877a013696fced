package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"cdms/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// LockScopeTx serializes appends for one scope within the transaction. The
// lock is released automatically at commit or rollback.
func (s *Store) LockScopeTx(ctx context.Context, tx pgx.Tx, scope string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, scope)
	return err
}

func (s *Store) LastEntryTx(ctx context.Context, tx pgx.Tx, scope string) (*Entry, int, error) {
	var count int
	if err := tx.QueryRow(ctx, `
    SELECT COUNT(*) FROM history_entries WHERE scope_key = $1
  `, scope).Scan(&count); err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, nil
	}

	var entry Entry
	err := tx.QueryRow(ctx, `
    SELECT id, scope_key, sequence, action, actor_id, payload, entry_hash, previous_hash, algorithm, created_at
    FROM history_entries
    WHERE scope_key = $1
    ORDER BY sequence DESC
    LIMIT 1
  `, scope).Scan(&entry.ID, &entry.Scope, &entry.Sequence, &entry.Action, &entry.ActorID,
		&entry.Payload, &entry.EntryHash, &entry.PreviousHash, &entry.Algorithm, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, count, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return &entry, count, nil
}

func (s *Store) InsertEntryTx(ctx context.Context, tx pgx.Tx, entry *Entry) error {
	return tx.QueryRow(ctx, `
    INSERT INTO history_entries (scope_key, sequence, action, actor_id, payload, entry_hash, previous_hash, algorithm)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING id, created_at
  `, entry.Scope, entry.Sequence, entry.Action, entry.ActorID, string(entry.Payload),
		entry.EntryHash, entry.PreviousHash, entry.Algorithm).Scan(&entry.ID, &entry.CreatedAt)
}

func (s *Store) EntriesAsc(ctx context.Context, scope string) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, scope_key, sequence, action, actor_id, payload, entry_hash, previous_hash, algorithm, created_at
    FROM history_entries
    WHERE scope_key = $1
    ORDER BY sequence ASC
  `, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) History(ctx context.Context, scope string, limit, offset int) ([]Entry, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(*) FROM history_entries WHERE scope_key = $1
  `, scope).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT id, scope_key, sequence, action, actor_id, payload, entry_hash, previous_hash, algorithm, created_at
    FROM history_entries
    WHERE scope_key = $1
    ORDER BY sequence ASC
    LIMIT $2 OFFSET $3
  `, scope, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Store) Scopes(ctx context.Context, prefix string, limit int) ([]ScopeInfo, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT scope_key, COUNT(*), MAX(created_at)
    FROM history_entries
    WHERE scope_key LIKE $1 || '%'
    GROUP BY scope_key
    ORDER BY MAX(created_at) DESC
    LIMIT $2
  `, prefix, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []ScopeInfo
	for rows.Next() {
		var info ScopeInfo
		if err := rows.Scan(&info.Scope, &info.Entries, &info.LastEntryAt); err != nil {
			return nil, err
		}
		scopes = append(scopes, info)
	}
	return scopes, rows.Err()
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Scope, &entry.Sequence, &entry.Action, &entry.ActorID,
			&entry.Payload, &entry.EntryHash, &entry.PreviousHash, &entry.Algorithm, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
