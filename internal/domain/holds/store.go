package holds

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.DB.Begin(ctx)
}

const holdColumns = `
    id, hold_type, subject_ids, categories, reason, COALESCE(legal_basis, ''),
    active, created_by, created_at, COALESCE(released_by, ''), released_at, COALESCE(release_reason, '')`

func (s *Store) InsertHoldTx(ctx context.Context, tx pgx.Tx, hold *LegalHold) error {
	return tx.QueryRow(ctx, `
    INSERT INTO legal_holds (hold_type, subject_ids, categories, reason, legal_basis, active, created_by)
    VALUES ($1,$2,$3,$4,NULLIF($5,''),true,$6)
    RETURNING id, created_at
  `, string(hold.HoldType), hold.SubjectIDs, hold.Categories, hold.Reason, hold.LegalBasis, hold.CreatedBy).
		Scan(&hold.ID, &hold.CreatedAt)
}

func (s *Store) GetHold(ctx context.Context, id string) (*LegalHold, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+holdColumns+`
    FROM legal_holds
    WHERE id = $1
  `, id)
	hold, err := scanHold(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrHoldNotFound
	}
	if err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *Store) GetHoldTx(ctx context.Context, tx pgx.Tx, id string) (*LegalHold, error) {
	row := tx.QueryRow(ctx, `
    SELECT`+holdColumns+`
    FROM legal_holds
    WHERE id = $1
    FOR UPDATE
  `, id)
	hold, err := scanHold(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrHoldNotFound
	}
	if err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *Store) ReleaseHoldTx(ctx context.Context, tx pgx.Tx, id, releasedBy, reason string) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE legal_holds
    SET active = false, released_by = $2, released_at = now(), release_reason = $3
    WHERE id = $1 AND active = true
  `, id, releasedBy, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ActiveHolds(ctx context.Context) ([]LegalHold, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+holdColumns+`
    FROM legal_holds
    WHERE active = true
    ORDER BY created_at ASC
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHolds(rows)
}

func (s *Store) ListHolds(ctx context.Context, activeOnly bool, limit, offset int) ([]LegalHold, int, error) {
	filter := ""
	if activeOnly {
		filter = "WHERE active = true"
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(*) FROM legal_holds "+filter).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT`+holdColumns+`
    FROM legal_holds
    `+filter+`
    ORDER BY created_at DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list, err := scanHolds(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{ByType: map[string]int{}}
	rows, err := s.DB.Query(ctx, `
    SELECT hold_type, active, COUNT(*)
    FROM legal_holds
    GROUP BY hold_type, active
  `)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var holdType string
		var active bool
		var count int
		if err := rows.Scan(&holdType, &active, &count); err != nil {
			return stats, err
		}
		stats.Total += count
		if active {
			stats.Active += count
		} else {
			stats.Released += count
		}
		stats.ByType[holdType] += count
	}
	return stats, rows.Err()
}

func scanHold(row pgx.Row) (*LegalHold, error) {
	var hold LegalHold
	var holdType string
	if err := row.Scan(&hold.ID, &holdType, &hold.SubjectIDs, &hold.Categories, &hold.Reason,
		&hold.LegalBasis, &hold.Active, &hold.CreatedBy, &hold.CreatedAt,
		&hold.ReleasedBy, &hold.ReleasedAt, &hold.ReleaseReason); err != nil {
		return nil, err
	}
	hold.HoldType = HoldType(holdType)
	return &hold, nil
}

func scanHolds(rows pgx.Rows) ([]LegalHold, error) {
	var list []LegalHold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *hold)
	}
	return list, rows.Err()
}
