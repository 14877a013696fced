package rights

import (
	"context"
	"errors"
	"time"

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

const requestColumns = `
    id, kind, sequence_code, subject_id, COALESCE(subject_name, ''), COALESCE(grounds, ''),
    COALESCE(detail, ''), status, received_at, due_at, extended_due_at,
    COALESCE(extension_reason, ''), extended, completed_at, COALESCE(closed_by, ''),
    COALESCE(close_reason, ''), created_by, COALESCE(entry_hash, ''), COALESCE(previous_hash, ''),
    created_at, updated_at`

// NextSequenceTx increments and returns the per-kind counter for the year.
func (s *Store) NextSequenceTx(ctx context.Context, tx pgx.Tx, kind Kind, year int) (int, error) {
	var counter int
	err := tx.QueryRow(ctx, `
    INSERT INTO request_counters (kind, year, counter)
    VALUES ($1, $2, 1)
    ON CONFLICT (kind, year) DO UPDATE SET counter = request_counters.counter + 1
    RETURNING counter
  `, string(kind), year).Scan(&counter)
	return counter, err
}

func (s *Store) InsertRequestTx(ctx context.Context, tx pgx.Tx, request *Request) error {
	return tx.QueryRow(ctx, `
    INSERT INTO rights_requests
      (kind, sequence_code, subject_id, subject_name, grounds, detail, status, received_at, due_at, created_by)
    VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),NULLIF($6,''),$7,$8,$9,$10)
    RETURNING id, created_at, updated_at
  `, string(request.Kind), request.SequenceCode, request.SubjectID, request.SubjectName,
		request.Grounds, request.Detail, string(request.Status), request.ReceivedAt,
		request.DueAt, request.CreatedBy).
		Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
}

// SetCreationLinkTx denormalizes the kind-chain entry onto the request row.
func (s *Store) SetCreationLinkTx(ctx context.Context, tx pgx.Tx, id, entryHash, previousHash string) error {
	_, err := tx.Exec(ctx, `
    UPDATE rights_requests
    SET entry_hash = $2, previous_hash = $3, updated_at = now()
    WHERE id = $1
  `, id, entryHash, previousHash)
	return err
}

func (s *Store) GetRequest(ctx context.Context, kind Kind, id string) (*Request, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+requestColumns+`
    FROM rights_requests
    WHERE id = $1 AND kind = $2
  `, id, string(kind))
	request, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *Store) ListRequests(ctx context.Context, kind Kind, status string, limit, offset int) ([]Request, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(*) FROM rights_requests
    WHERE kind = $1 AND ($2 = '' OR status = $2)
  `, string(kind), status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT`+requestColumns+`
    FROM rights_requests
    WHERE kind = $1 AND ($2 = '' OR status = $2)
    ORDER BY received_at DESC
    LIMIT $3 OFFSET $4
  `, string(kind), status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list, err := scanRequests(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// PendingRequests returns open requests ordered by the deadline in force,
// for the external scheduler's sweep.
func (s *Store) PendingRequests(ctx context.Context, kind Kind) ([]Request, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+requestColumns+`
    FROM rights_requests
    WHERE kind = $1 AND status IN ('received', 'legal_hold')
    ORDER BY COALESCE(extended_due_at, due_at) ASC
  `, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// OverdueRequests returns open requests of every kind whose deadline in
// force has already passed.
func (s *Store) OverdueRequests(ctx context.Context, asOf time.Time) ([]Request, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+requestColumns+`
    FROM rights_requests
    WHERE status IN ('received', 'legal_hold') AND COALESCE(extended_due_at, due_at) < $1
    ORDER BY COALESCE(extended_due_at, due_at) ASC
  `, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// CompleteRequestTx performs the conditional terminal write. A false return
// means another caller closed the request first.
func (s *Store) CompleteRequestTx(ctx context.Context, tx pgx.Tx, id, by string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE rights_requests
    SET status = 'completed', completed_at = $3, closed_by = $2, updated_at = now()
    WHERE id = $1 AND status IN ('received', 'legal_hold')
  `, id, by, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CloseRequestTx is the conditional terminal write for reject and override.
func (s *Store) CloseRequestTx(ctx context.Context, tx pgx.Tx, id string, status RequestStatus, by, reason string) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE rights_requests
    SET status = $2, closed_by = $3, close_reason = $4, updated_at = now()
    WHERE id = $1 AND status IN ('received', 'legal_hold')
  `, id, string(status), by, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExtendRequestTx records the single permitted extension. A false return
// means the extension was already used.
func (s *Store) ExtendRequestTx(ctx context.Context, tx pgx.Tx, id string, newDue time.Time, reason string) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE rights_requests
    SET extended_due_at = $2, extension_reason = $3, extended = true, updated_at = now()
    WHERE id = $1 AND extended = false AND status IN ('received', 'legal_hold')
  `, id, newDue, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Statistics(ctx context.Context, kind Kind, asOf time.Time) (Statistics, error) {
	stats := Statistics{Kind: kind, ByStatus: map[string]int{}}

	rows, err := s.DB.Query(ctx, `
    SELECT status, COUNT(*)
    FROM rights_requests
    WHERE kind = $1
    GROUP BY status
  `, string(kind))
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(*)
    FROM rights_requests
    WHERE kind = $1 AND status IN ('received', 'legal_hold')
      AND COALESCE(extended_due_at, due_at) < $2
  `, string(kind), asOf).Scan(&stats.Overdue); err != nil {
		return stats, err
	}

	if err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - received_at)) / 86400.0), 0)
    FROM rights_requests
    WHERE kind = $1 AND status = 'completed' AND completed_at IS NOT NULL
  `, string(kind)).Scan(&stats.AvgCompletionDays); err != nil {
		return stats, err
	}

	return stats, nil
}

func scanRequest(row pgx.Row) (*Request, error) {
	var request Request
	var kind, status string
	if err := row.Scan(&request.ID, &kind, &request.SequenceCode, &request.SubjectID,
		&request.SubjectName, &request.Grounds, &request.Detail, &status,
		&request.ReceivedAt, &request.DueAt, &request.ExtendedDueAt, &request.ExtensionReason,
		&request.Extended, &request.CompletedAt, &request.ClosedBy, &request.CloseReason,
		&request.CreatedBy, &request.EntryHash, &request.PreviousHash,
		&request.CreatedAt, &request.UpdatedAt); err != nil {
		return nil, err
	}
	request.Kind = Kind(kind)
	request.Status = RequestStatus(status)
	return &request, nil
}

func scanRequests(rows pgx.Rows) ([]Request, error) {
	var list []Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *request)
	}
	return list, rows.Err()
}
