package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"cdms/internal/domain/ledger"
	"cdms/internal/domain/retention"
	"cdms/internal/domain/rights"
)

// The generator reads through narrow slices of the other services; it never
// touches the store directly.
type RequestSource interface {
	GetRequest(ctx context.Context, kind rights.Kind, requestID string) (*rights.Request, error)
	Items(ctx context.Context, kind rights.Kind, requestID string) ([]rights.Item, error)
	Recipients(ctx context.Context, kind rights.Kind, requestID string) ([]rights.Recipient, error)
}

type ChainVerifier interface {
	Verify(ctx context.Context, scope string) (ledger.VerifyResult, error)
}

type RetentionSource interface {
	Statistics(ctx context.Context) (retention.Statistics, error)
	ListPolicies(ctx context.Context) ([]retention.Policy, error)
	ExpiringSoon(ctx context.Context, daysAhead int) ([]retention.Record, error)
}

type Service struct {
	requests  RequestSource
	verifier  ChainVerifier
	retention RetentionSource
}

func NewService(requests RequestSource, verifier ChainVerifier, ret RetentionSource) *Service {
	return &Service{requests: requests, verifier: verifier, retention: ret}
}

const dateFormat = "2006-01-02"

// RequestCertificate renders the compliance certificate for a request: its
// lifecycle summary, every item with its decision and verification hash,
// the notification table, and the chain verification status at the moment
// of generation.
func (s *Service) RequestCertificate(ctx context.Context, kind rights.Kind, requestID string) ([]byte, error) {
	request, err := s.requests.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	items, err := s.requests.Items(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	recipients, err := s.requests.Recipients(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	verify, err := s.verifier.Verify(ctx, rights.RequestScope(requestID))
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Compliance Certificate")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Request: %s (%s)", request.SequenceCode, request.Kind))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Subject: %s", subjectLine(request)))
	pdf.Ln(7)
	if request.Grounds != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Grounds: %s", request.Grounds))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", request.Status))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Received: %s    Due: %s", request.ReceivedAt.Format(dateFormat), request.EffectiveDueAt().Format(dateFormat)))
	pdf.Ln(7)
	if request.CompletedAt != nil {
		pdf.Cell(0, 8, fmt.Sprintf("Completed: %s by %s", request.CompletedAt.Format(dateFormat), request.ClosedBy))
		pdf.Ln(7)
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	if verify.Valid {
		pdf.Cell(0, 8, fmt.Sprintf("Audit chain verified: %d entries intact", verify.Entries))
	} else {
		pdf.Cell(0, 8, fmt.Sprintf("AUDIT CHAIN BROKEN at entry %d: %s", *verify.BreakPosition, verify.Reason))
	}
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Items (%d)", len(items)))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 9)
	for _, item := range items {
		pdf.Cell(0, 6, fmt.Sprintf("%s/%s  [%s]", item.RecordTable, item.RecordKey, item.Status))
		pdf.Ln(5)
		if item.ErasureMethod != "" {
			pdf.Cell(0, 6, fmt.Sprintf("    method: %s", item.ErasureMethod))
			pdf.Ln(5)
		}
		if item.ReviewReason != "" {
			pdf.Cell(0, 6, fmt.Sprintf("    review: %s", item.ReviewReason))
			pdf.Ln(5)
		}
		if item.VerificationHash != "" {
			pdf.SetFont("Helvetica", "", 7)
			pdf.Cell(0, 5, fmt.Sprintf("    verification: %s", item.VerificationHash))
			pdf.SetFont("Helvetica", "", 9)
			pdf.Ln(5)
		}
		pdf.Ln(2)
	}
	if len(items) == 0 {
		pdf.Cell(0, 6, "No items recorded.")
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Third-party notifications (%d)", len(recipients)))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 9)
	for _, recipient := range recipients {
		pdf.Cell(0, 6, recipientLine(recipient))
		pdf.Ln(5)
	}
	if len(recipients) == 0 {
		pdf.Cell(0, 6, "No recipients recorded.")
		pdf.Ln(6)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC3339)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RetentionSummary renders the retention estate: counts by status, the
// policy table, and everything expiring inside the window.
func (s *Service) RetentionSummary(ctx context.Context, daysAhead int) ([]byte, error) {
	if daysAhead < 1 {
		daysAhead = 30
	}

	stats, err := s.retention.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	policies, err := s.retention.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	expiring, err := s.retention.ExpiringSoon(ctx, daysAhead)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Retention Summary")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Tracked records: %d    Held: %d    Policies: %d", stats.Total, stats.Held, stats.Policies))
	pdf.Ln(9)
	for _, status := range []retention.RecordStatus{
		retention.StatusActive, retention.StatusExpired, retention.StatusLegalHold,
		retention.StatusDeleted, retention.StatusAnonymized,
	} {
		pdf.Cell(0, 7, fmt.Sprintf("  %s: %d", status, stats.ByStatus[string(status)]))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Policies")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	for _, policy := range policies {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %d days, on expiry %s", policy.Category, policy.RetentionDays, policy.ActionOnExpiry))
		pdf.Ln(5)
	}
	if len(policies) == 0 {
		pdf.Cell(0, 6, "No policies configured.")
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Expiring within %d days (%d)", daysAhead, len(expiring)))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 9)
	for _, record := range expiring {
		pdf.Cell(0, 6, fmt.Sprintf("%s/%s  %s  expires %s", record.RecordTable, record.RecordKey, record.Category, record.ExpiryDate.Format(dateFormat)))
		pdf.Ln(5)
	}
	if len(expiring) == 0 {
		pdf.Cell(0, 6, "Nothing expiring in the window.")
		pdf.Ln(6)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC3339)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func subjectLine(request *rights.Request) string {
	if request.SubjectName != "" {
		return fmt.Sprintf("%s (%s)", request.SubjectName, request.SubjectID)
	}
	return request.SubjectID
}

func recipientLine(recipient rights.Recipient) string {
	state := "not notified"
	if recipient.NotifiedAt != nil {
		state = "notified " + recipient.NotifiedAt.Format(dateFormat)
	}
	if recipient.ConfirmedAt != nil {
		state += ", confirmed " + recipient.ConfirmedAt.Format(dateFormat)
	}
	required := "optional"
	if recipient.Required {
		required = "required"
	}
	return fmt.Sprintf("%s (%s): %s", recipient.Name, required, state)
}
