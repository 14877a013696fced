package retention

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

const policyColumns = `
    id, category, retention_days, action_on_expiry, COALESCE(description, ''), created_at`

func (s *Store) InsertPolicy(ctx context.Context, policy *Policy) error {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO retention_policies (category, retention_days, action_on_expiry, description)
    VALUES ($1,$2,$3,NULLIF($4,''))
    ON CONFLICT (category) DO NOTHING
    RETURNING id, created_at
  `, policy.Category, policy.RetentionDays, string(policy.ActionOnExpiry), policy.Description).
		Scan(&policy.ID, &policy.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPolicyExists
	}
	return err
}

func (s *Store) GetPolicy(ctx context.Context, id string) (*Policy, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+policyColumns+`
    FROM retention_policies
    WHERE id = $1
  `, id)
	return scanPolicyRow(row)
}

func (s *Store) PolicyByCategory(ctx context.Context, category string) (*Policy, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+policyColumns+`
    FROM retention_policies
    WHERE category = $1
  `, category)
	return scanPolicyRow(row)
}

func (s *Store) ListPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+policyColumns+`
    FROM retention_policies
    ORDER BY category
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *policy)
	}
	return policies, rows.Err()
}

const recordColumns = `
    id, policy_id, record_table, record_key, COALESCE(subject_id, ''), category,
    created_date, expiry_date, status, extension_count, hold, COALESCE(hold_reason, ''),
    actioned_at, COALESCE(actioned_by, ''), COALESCE(action_method, ''), created_at, updated_at`

func (s *Store) InsertRecordTx(ctx context.Context, tx pgx.Tx, record *Record) error {
	err := tx.QueryRow(ctx, `
    INSERT INTO retention_records (policy_id, record_table, record_key, subject_id, category, created_date, expiry_date, status)
    VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8)
    ON CONFLICT (record_table, record_key) DO NOTHING
    RETURNING id, created_at, updated_at
  `, record.PolicyID, record.RecordTable, record.RecordKey, record.SubjectID, record.Category,
		record.CreatedDate, record.ExpiryDate, string(record.Status)).
		Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateRecord
	}
	return err
}

func (s *Store) GetRecord(ctx context.Context, id string) (*Record, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+recordColumns+`
    FROM retention_records
    WHERE id = $1
  `, id)
	return scanRecordRow(row)
}

func (s *Store) GetRecordTx(ctx context.Context, tx pgx.Tx, id string) (*Record, error) {
	row := tx.QueryRow(ctx, `
    SELECT`+recordColumns+`
    FROM retention_records
    WHERE id = $1
    FOR UPDATE
  `, id)
	return scanRecordRow(row)
}

func (s *Store) ListRecords(ctx context.Context, status string, limit, offset int) ([]Record, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(*)
    FROM retention_records
    WHERE ($1 = '' OR status = $1)
  `, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT`+recordColumns+`
    FROM retention_records
    WHERE ($1 = '' OR status = $1)
    ORDER BY expiry_date ASC
    LIMIT $2 OFFSET $3
  `, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ScanExpiredTx flips every due, unheld active record to expired and
// returns the flipped rows.
func (s *Store) ScanExpiredTx(ctx context.Context, tx pgx.Tx, asOf time.Time) ([]Record, error) {
	rows, err := tx.Query(ctx, `
    UPDATE retention_records
    SET status = 'expired', updated_at = now()
    WHERE status = 'active' AND hold = false AND expiry_date <= $1
    RETURNING`+recordColumns+`
  `, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *Store) ExtendRecordTx(ctx context.Context, tx pgx.Tx, id string, newExpiry time.Time, status RecordStatus) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE retention_records
    SET expiry_date = $2, extension_count = extension_count + 1, status = $3, updated_at = now()
    WHERE id = $1 AND hold = false AND status IN ('active','expired')
  `, id, newExpiry, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ApplyHoldTx(ctx context.Context, tx pgx.Tx, id, reason string) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE retention_records
    SET hold = true, hold_reason = $2, status = 'legal_hold', updated_at = now()
    WHERE id = $1 AND hold = false AND status IN ('active','expired')
  `, id, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ReleaseHoldTx(ctx context.Context, tx pgx.Tx, id string, status RecordStatus) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE retention_records
    SET hold = false, hold_reason = NULL, status = $2, updated_at = now()
    WHERE id = $1 AND hold = true
  `, id, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ActionRecordTx(ctx context.Context, tx pgx.Tx, id string, status RecordStatus, by, method string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE retention_records
    SET status = $2, actioned_at = $3, actioned_by = $4, action_method = $5, updated_at = now()
    WHERE id = $1 AND hold = false AND status IN ('active','expired')
  `, id, string(status), at, by, method)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpiredWithActions lists expired, unheld records joined to the policy
// action that should be taken for each.
func (s *Store) ExpiredWithActions(ctx context.Context) ([]ExpiredRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT r.id, r.policy_id, r.record_table, r.record_key, COALESCE(r.subject_id, ''), r.category,
           r.created_date, r.expiry_date, r.status, r.extension_count, r.hold, COALESCE(r.hold_reason, ''),
           r.actioned_at, COALESCE(r.actioned_by, ''), COALESCE(r.action_method, ''), r.created_at, r.updated_at,
           p.action_on_expiry
    FROM retention_records r
    JOIN retention_policies p ON p.id = r.policy_id
    WHERE r.status = 'expired' AND r.hold = false
    ORDER BY r.expiry_date ASC
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []ExpiredRecord
	for rows.Next() {
		var entry ExpiredRecord
		var status, action string
		if err := rows.Scan(&entry.ID, &entry.PolicyID, &entry.RecordTable, &entry.RecordKey,
			&entry.SubjectID, &entry.Category, &entry.CreatedDate, &entry.ExpiryDate, &status,
			&entry.ExtensionCount, &entry.Hold, &entry.HoldReason, &entry.ActionedAt,
			&entry.ActionedBy, &entry.ActionMethod, &entry.CreatedAt, &entry.UpdatedAt, &action); err != nil {
			return nil, err
		}
		entry.Status = RecordStatus(status)
		entry.Action = PolicyAction(action)
		expired = append(expired, entry)
	}
	return expired, rows.Err()
}

func (s *Store) ExpiringSoon(ctx context.Context, cutoff time.Time) ([]Record, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+recordColumns+`
    FROM retention_records
    WHERE status = 'active' AND hold = false AND expiry_date <= $1
    ORDER BY expiry_date ASC
  `, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{ByStatus: map[string]int{}}
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(*), COUNT(*) FILTER (WHERE hold)
    FROM retention_records
  `).Scan(&stats.Total, &stats.Held); err != nil {
		return stats, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT status, COUNT(*)
    FROM retention_records
    GROUP BY status
  `)
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
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	err = s.DB.QueryRow(ctx, `
    SELECT COUNT(*)
    FROM retention_policies
  `).Scan(&stats.Policies)
	return stats, err
}

func scanPolicyRow(row pgx.Row) (*Policy, error) {
	policy, err := scanPolicy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	return policy, err
}

func scanPolicy(row pgx.Row) (*Policy, error) {
	var policy Policy
	var action string
	if err := row.Scan(&policy.ID, &policy.Category, &policy.RetentionDays, &action,
		&policy.Description, &policy.CreatedAt); err != nil {
		return nil, err
	}
	policy.ActionOnExpiry = PolicyAction(action)
	return &policy, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var record Record
	var status string
	if err := row.Scan(&record.ID, &record.PolicyID, &record.RecordTable, &record.RecordKey,
		&record.SubjectID, &record.Category, &record.CreatedDate, &record.ExpiryDate, &status,
		&record.ExtensionCount, &record.Hold, &record.HoldReason, &record.ActionedAt,
		&record.ActionedBy, &record.ActionMethod, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}
	record.Status = RecordStatus(status)
	return &record, nil
}

func scanRecordRow(row pgx.Row) (*Record, error) {
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return record, err
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}
