package rights

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const itemColumns = `
    id, request_id, record_table, record_key, COALESCE(category, ''), COALESCE(description, ''),
    status, COALESCE(hold_reason, ''), COALESCE(old_value, ''), COALESCE(new_value, ''),
    COALESCE(erasure_method, ''), COALESCE(reviewed_by, ''), reviewed_at, COALESCE(review_reason, ''),
    COALESCE(applied_by, ''), applied_at, COALESCE(change_summary, ''), COALESCE(verification_hash, ''),
    COALESCE(lifted_by, ''), lifted_at, COALESCE(lift_reason, ''), created_at`

func (s *Store) InsertItemTx(ctx context.Context, tx pgx.Tx, item *Item) error {
	return tx.QueryRow(ctx, `
    INSERT INTO rights_items
      (request_id, record_table, record_key, category, description, status, hold_reason, old_value, new_value, erasure_method)
    VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,NULLIF($7,''),NULLIF($8,''),NULLIF($9,''),NULLIF($10,''))
    RETURNING id, created_at
  `, item.RequestID, item.RecordTable, item.RecordKey, item.Category, item.Description,
		string(item.Status), item.HoldReason, item.OldValue, item.NewValue, string(item.ErasureMethod)).
		Scan(&item.ID, &item.CreatedAt)
}

func (s *Store) GetItem(ctx context.Context, requestID, itemID string) (*Item, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+itemColumns+`
    FROM rights_items
    WHERE id = $1 AND request_id = $2
  `, itemID, requestID)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Store) ItemsByRequest(ctx context.Context, requestID string) ([]Item, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+itemColumns+`
    FROM rights_items
    WHERE request_id = $1
    ORDER BY created_at ASC
  `, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ReviewItemTx writes the review decision conditionally on the item still
// being reviewable. A false return means another reviewer got there first.
func (s *Store) ReviewItemTx(ctx context.Context, tx pgx.Tx, itemID string, status ItemStatus, by, reason string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE rights_items
    SET status = $2, reviewed_by = $3, review_reason = NULLIF($4,''), reviewed_at = $5
    WHERE id = $1 AND status IN ('pending', 'on_hold')
  `, itemID, string(status), by, reason, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ApplyItemTx moves an approved item to its applied or executed state with
// the verification stamp.
func (s *Store) ApplyItemTx(ctx context.Context, tx pgx.Tx, itemID string, status ItemStatus, by, changeSummary, verificationHash string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE rights_items
    SET status = $2, applied_by = $3, applied_at = $4,
        change_summary = NULLIF($5,''), verification_hash = $6
    WHERE id = $1 AND status = 'approved'
  `, itemID, string(status), by, at, changeSummary, verificationHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) LiftItemTx(ctx context.Context, tx pgx.Tx, itemID, by, reason string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE rights_items
    SET status = 'lifted', lifted_by = $2, lifted_at = $4, lift_reason = NULLIF($3,'')
    WHERE id = $1 AND status = 'applied'
  `, itemID, by, reason, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	var status, method string
	if err := row.Scan(&item.ID, &item.RequestID, &item.RecordTable, &item.RecordKey,
		&item.Category, &item.Description, &status, &item.HoldReason,
		&item.OldValue, &item.NewValue, &method, &item.ReviewedBy, &item.ReviewedAt,
		&item.ReviewReason, &item.AppliedBy, &item.AppliedAt, &item.ChangeSummary,
		&item.VerificationHash, &item.LiftedBy, &item.LiftedAt, &item.LiftReason,
		&item.CreatedAt); err != nil {
		return nil, err
	}
	item.Status = ItemStatus(status)
	item.ErasureMethod = ErasureMethod(method)
	return &item, nil
}
