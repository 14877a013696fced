package rights

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"cdms/internal/domain/holds"
	"cdms/internal/domain/ledger"
	"cdms/internal/platform/metrics"
)

// HoldChecker is the live view into the legal hold registry. The engine
// consults it before every destructive transition; the registry only
// answers, the engine owns the refusal.
type HoldChecker interface {
	Check(ctx context.Context, subjectID, category string) (holds.CheckResult, error)
}

// Ledger is the slice of the hash-chain service the engine appends through.
// Every transition produces exactly one entry on the request's own chain;
// creation additionally links into the per-kind chain.
type Ledger interface {
	AppendTx(ctx context.Context, tx pgx.Tx, scope, action, actorID string, payload map[string]any) (ledger.Entry, error)
	ContinueTx(ctx context.Context, tx pgx.Tx, scope, action, actorID string, payload map[string]any) (ledger.Entry, error)
	History(ctx context.Context, scope string, limit, offset int) ([]ledger.Entry, int, error)
}

type Hasher interface {
	Digest(payload map[string]any) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store   *Store
	ledger  Ledger
	holds   HoldChecker
	hasher  Hasher
	mailer  Mailer
	from    string
	metrics *metrics.Metrics
}

func NewService(store *Store, chain Ledger, checker HoldChecker, hasher Hasher, mailer Mailer, emailFrom string, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		ledger:  chain,
		holds:   checker,
		hasher:  hasher,
		mailer:  mailer,
		from:    emailFrom,
		metrics: m,
	}
}

// RequestScope and KindScope name the two chain scopes every request writes
// to: its own full history and the per-kind creation chain.
func RequestScope(requestID string) string {
	return "request:" + requestID
}

func KindScope(kind Kind) string {
	return "requests:" + string(kind)
}

// CreateRequest opens a workflow instance. A subject already under legal
// hold still gets a request, marked legal_hold instead of received; items
// can be added and reviewed once the hold clears.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput, createdBy string) (*Request, error) {
	if err := ValidateCreate(input); err != nil {
		return nil, err
	}

	check, err := s.holds.Check(ctx, input.SubjectID, "")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	request := &Request{
		Kind:        input.Kind,
		SubjectID:   input.SubjectID,
		SubjectName: input.SubjectName,
		Grounds:     input.Grounds,
		Detail:      input.Detail,
		Status:      StatusReceived,
		ReceivedAt:  now,
		DueAt:       DueDate(now),
		CreatedBy:   createdBy,
	}
	if check.IsHeld {
		request.Status = StatusLegalHold
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	counter, err := s.store.NextSequenceTx(ctx, tx, input.Kind, now.Year())
	if err != nil {
		return nil, err
	}
	request.SequenceCode = SequenceCode(input.Kind, now.Year(), counter)

	if err := s.store.InsertRequestTx(ctx, tx, request); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"requestId":    request.ID,
		"sequenceCode": request.SequenceCode,
		"kind":         string(request.Kind),
		"subjectId":    request.SubjectID,
		"grounds":      request.Grounds,
		"status":       string(request.Status),
		"dueAt":        request.DueAt.Format(time.RFC3339),
	}

	kindEntry, err := s.ledger.AppendTx(ctx, tx, KindScope(input.Kind), "request_created", createdBy, payload)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetCreationLinkTx(ctx, tx, request.ID, kindEntry.EntryHash, kindEntry.PreviousHash); err != nil {
		return nil, err
	}
	request.EntryHash = kindEntry.EntryHash
	request.PreviousHash = kindEntry.PreviousHash

	if _, err := s.ledger.AppendTx(ctx, tx, RequestScope(request.ID), "request_created", createdBy, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.metrics.IncRequestOpened(string(request.Kind))
	return request, nil
}

func (s *Service) GetRequest(ctx context.Context, kind Kind, requestID string) (*Request, error) {
	return s.store.GetRequest(ctx, kind, requestID)
}

func (s *Service) ListRequests(ctx context.Context, kind Kind, status string, limit, offset int) ([]Request, int, error) {
	return s.store.ListRequests(ctx, kind, status, limit, offset)
}

func (s *Service) PendingRequests(ctx context.Context, kind Kind) ([]Request, error) {
	return s.store.PendingRequests(ctx, kind)
}

func (s *Service) Overdue(ctx context.Context, asOf time.Time) ([]Request, error) {
	return s.store.OverdueRequests(ctx, asOf)
}

func (s *Service) Items(ctx context.Context, kind Kind, requestID string) ([]Item, error) {
	if _, err := s.store.GetRequest(ctx, kind, requestID); err != nil {
		return nil, err
	}
	return s.store.ItemsByRequest(ctx, requestID)
}

func (s *Service) History(ctx context.Context, kind Kind, requestID string, limit, offset int) ([]ledger.Entry, int, error) {
	if _, err := s.store.GetRequest(ctx, kind, requestID); err != nil {
		return nil, 0, err
	}
	return s.ledger.History(ctx, RequestScope(requestID), limit, offset)
}

func (s *Service) Recipients(ctx context.Context, kind Kind, requestID string) ([]Recipient, error) {
	if _, err := s.store.GetRequest(ctx, kind, requestID); err != nil {
		return nil, err
	}
	return s.store.RecipientsByRequest(ctx, requestID)
}

func (s *Service) Statistics(ctx context.Context, kind Kind) (Statistics, error) {
	if !kind.Valid() {
		return Statistics{}, ErrInvalidKind
	}
	return s.store.Statistics(ctx, kind, time.Now().UTC())
}
