package retention

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"cdms/internal/domain/holds"
	"cdms/internal/domain/ledger"
	"cdms/internal/platform/metrics"
)

// HoldChecker is the legal hold registry view. The record-level hold flag
// and the registry are independent mechanisms; destructive actions consult
// both.
type HoldChecker interface {
	Check(ctx context.Context, subjectID, category string) (holds.CheckResult, error)
}

type Ledger interface {
	AppendTx(ctx context.Context, tx pgx.Tx, scope, action, actorID string, payload map[string]any) (ledger.Entry, error)
	ContinueTx(ctx context.Context, tx pgx.Tx, scope, action, actorID string, payload map[string]any) (ledger.Entry, error)
}

type Service struct {
	store   *Store
	ledger  Ledger
	holds   HoldChecker
	metrics *metrics.Metrics
}

func NewService(store *Store, chain Ledger, checker HoldChecker, m *metrics.Metrics) *Service {
	return &Service{store: store, ledger: chain, holds: checker, metrics: m}
}

func recordScope(recordID string) string {
	return "retention:" + recordID
}

func (s *Service) CreatePolicy(ctx context.Context, input CreatePolicyInput) (*Policy, error) {
	if err := ValidatePolicy(input); err != nil {
		return nil, err
	}
	policy := &Policy{
		Category:       input.Category,
		RetentionDays:  input.RetentionDays,
		ActionOnExpiry: input.ActionOnExpiry,
		Description:    input.Description,
	}
	if err := s.store.InsertPolicy(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

func (s *Service) ListPolicies(ctx context.Context) ([]Policy, error) {
	return s.store.ListPolicies(ctx)
}

// Register puts a record under retention tracking. The expiry is computed
// once here; from then on it only moves through Extend.
func (s *Service) Register(ctx context.Context, input RegisterInput, actorID string) (*Record, error) {
	if err := ValidateRegister(input); err != nil {
		return nil, err
	}

	var policy *Policy
	var err error
	if input.PolicyID != "" {
		policy, err = s.store.GetPolicy(ctx, input.PolicyID)
	} else {
		policy, err = s.store.PolicyByCategory(ctx, input.Category)
	}
	if err != nil {
		return nil, err
	}

	createdDate := input.CreatedDate
	if createdDate.IsZero() {
		createdDate = time.Now().UTC()
	}

	record := &Record{
		PolicyID:    policy.ID,
		RecordTable: input.RecordTable,
		RecordKey:   input.RecordKey,
		SubjectID:   input.SubjectID,
		Category:    policy.Category,
		CreatedDate: createdDate,
		ExpiryDate:  ComputeExpiry(createdDate, policy.RetentionDays),
		Status:      StatusActive,
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.InsertRecordTx(ctx, tx, record); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"recordId":    record.ID,
		"recordTable": record.RecordTable,
		"recordKey":   record.RecordKey,
		"category":    record.Category,
		"expiryDate":  record.ExpiryDate.Format(time.RFC3339),
	}
	if _, err := s.ledger.AppendTx(ctx, tx, recordScope(record.ID), "registered", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.metrics.IncRetentionAction("registered")
	return record, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.store.GetRecord(ctx, id)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]Record, int, error) {
	return s.store.ListRecords(ctx, status, limit, offset)
}

// ScanExpired flips due records to expired and returns them. Held records
// are never flipped; they sit out scans until released.
func (s *Service) ScanExpired(ctx context.Context, asOf time.Time, actorID string) ([]Record, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	records, err := s.store.ScanExpiredTx(ctx, tx, asOf)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		payload := map[string]any{
			"recordId":   record.ID,
			"expiryDate": record.ExpiryDate.Format(time.RFC3339),
			"asOf":       asOf.Format(time.RFC3339),
		}
		if _, err := s.ledger.ContinueTx(ctx, tx, recordScope(record.ID), "expired", actorID, payload); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	for range records {
		s.metrics.IncRetentionAction("expired")
	}
	return records, nil
}

// Extend pushes the expiry out by exactly the requested days. There is no
// cap and no limit on how often a record can be extended; each extension
// is chained with its reason.
func (s *Service) Extend(ctx context.Context, id string, days int, reason, actorID string) (*Record, error) {
	if days < 1 {
		return nil, ErrInvalidDays
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	record, err := s.store.GetRecordTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if record.Status.Terminal() {
		return nil, ErrRecordTerminal
	}
	if record.Hold {
		return nil, ErrRecordHeld
	}

	now := time.Now().UTC()
	newExpiry := record.ExpiryDate.AddDate(0, 0, days)
	newStatus := StatusForExpiry(newExpiry, now)

	ok, err := s.store.ExtendRecordTx(ctx, tx, id, newExpiry, newStatus)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecordTerminal
	}

	payload := map[string]any{
		"recordId":       record.ID,
		"days":           days,
		"newExpiryDate":  newExpiry.Format(time.RFC3339),
		"reason":         reason,
		"extensionCount": record.ExtensionCount + 1,
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, recordScope(id), "retention_extended", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.metrics.IncRetentionAction("extended")
	return s.store.GetRecord(ctx, id)
}

// ApplyHold sets the record-level hold flag. This is deliberately separate
// from the Legal Hold Registry, a second independent brake on the same
// record.
func (s *Service) ApplyHold(ctx context.Context, id, reason, actorID string) (*Record, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	record, err := s.store.GetRecordTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if record.Status.Terminal() {
		return nil, ErrRecordTerminal
	}
	if record.Hold {
		return nil, ErrAlreadyHeld
	}

	ok, err := s.store.ApplyHoldTx(ctx, tx, id, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyHeld
	}

	payload := map[string]any{
		"recordId": id,
		"reason":   reason,
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, recordScope(id), "hold_applied", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.GetRecord(ctx, id)
}

// ReleaseHold clears the flag and restores the status the expiry dictates.
func (s *Service) ReleaseHold(ctx context.Context, id, actorID string) (*Record, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	record, err := s.store.GetRecordTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !record.Hold {
		return nil, ErrNotHeld
	}

	restored := StatusForExpiry(record.ExpiryDate, time.Now().UTC())
	ok, err := s.store.ReleaseHoldTx(ctx, tx, id, restored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotHeld
	}

	payload := map[string]any{
		"recordId": id,
		"status":   string(restored),
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, recordScope(id), "hold_released", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.GetRecord(ctx, id)
}

// Delete disposes of the record. Terminal.
func (s *Service) Delete(ctx context.Context, id, actorID string) (*Record, error) {
	return s.action(ctx, id, actorID, StatusDeleted, "record_deleted", string(ActionDelete))
}

// Anonymize strips the record of identifying data instead of deleting it.
// Terminal.
func (s *Service) Anonymize(ctx context.Context, id, actorID string) (*Record, error) {
	return s.action(ctx, id, actorID, StatusAnonymized, "record_anonymized", string(ActionAnonymize))
}

func (s *Service) action(ctx context.Context, id, actorID string, target RecordStatus, action, method string) (*Record, error) {
	record, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status.Terminal() {
		return nil, ErrRecordTerminal
	}
	if record.Hold {
		return nil, ErrRecordHeld
	}

	// Second brake: the registry may hold this subject or category even
	// when the record flag is clear.
	check, err := s.holds.Check(ctx, record.SubjectID, record.Category)
	if err != nil {
		return nil, err
	}
	if check.IsHeld {
		return nil, ErrRecordHeld
	}

	now := time.Now().UTC()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.ActionRecordTx(ctx, tx, id, target, actorID, method, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.store.GetRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status.Terminal() {
			return nil, ErrRecordTerminal
		}
		return nil, ErrRecordHeld
	}

	payload := map[string]any{
		"recordId":    id,
		"recordTable": record.RecordTable,
		"recordKey":   record.RecordKey,
		"method":      method,
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, recordScope(id), action, actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.metrics.IncRetentionAction(strings.ToLower(method))
	return s.store.GetRecord(ctx, id)
}

// EnforceExpired is the scheduled enforcement pass: scan, then apply each
// expired record's policy action. Records that pick up a hold between the
// scan and the action are skipped, never failed.
func (s *Service) EnforceExpired(ctx context.Context, asOf time.Time, actorID string) (Enforcement, error) {
	var result Enforcement

	scanned, err := s.ScanExpired(ctx, asOf, actorID)
	if err != nil {
		return result, err
	}
	result.Scanned = len(scanned)

	expired, err := s.store.ExpiredWithActions(ctx)
	if err != nil {
		return result, err
	}

	for _, entry := range expired {
		switch entry.Action {
		case ActionDelete:
			if _, err := s.Delete(ctx, entry.ID, actorID); err != nil {
				slog.Warn("retention delete skipped", "record", entry.ID, "err", err)
				result.Skipped++
				continue
			}
			result.Deleted++
		case ActionAnonymize:
			if _, err := s.Anonymize(ctx, entry.ID, actorID); err != nil {
				slog.Warn("retention anonymize skipped", "record", entry.ID, "err", err)
				result.Skipped++
				continue
			}
			result.Anonymized++
		default:
			result.Review++
		}
	}
	return result, nil
}

func (s *Service) ExpiringSoon(ctx context.Context, daysAhead int) ([]Record, error) {
	if daysAhead < 1 {
		return nil, ErrInvalidDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, daysAhead)
	return s.store.ExpiringSoon(ctx, cutoff)
}

func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	return s.store.Statistics(ctx)
}

// Lock and Unlock manage the advisory operator lock for a record
// coordinate. A lock is not a hold: it coordinates concurrent operators
// and has no bearing on what retention may do to the record.
func (s *Service) Lock(ctx context.Context, recordTable, recordKey, holder string) (*RecordLock, error) {
	if strings.TrimSpace(recordTable) == "" || strings.TrimSpace(recordKey) == "" {
		return nil, ErrRecordRequired
	}
	if strings.TrimSpace(holder) == "" {
		return nil, ErrHolderRequired
	}
	return s.store.AcquireLock(ctx, LockKey(recordTable, recordKey), holder)
}

func (s *Service) Unlock(ctx context.Context, recordTable, recordKey, holder string) error {
	if strings.TrimSpace(recordTable) == "" || strings.TrimSpace(recordKey) == "" {
		return ErrRecordRequired
	}
	if strings.TrimSpace(holder) == "" {
		return ErrHolderRequired
	}
	return s.store.ReleaseLock(ctx, LockKey(recordTable, recordKey), holder)
}
