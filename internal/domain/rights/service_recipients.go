package rights

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// AddRecipient registers a third party the subject's data was disclosed to.
// Required recipients must be notified before the request can complete.
func (s *Service) AddRecipient(ctx context.Context, kind Kind, requestID string, input AddRecipientInput, actorID string) (*Recipient, error) {
	request, err := s.store.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, ErrRequestClosed
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrRecipientName
	}

	recipient := &Recipient{
		RequestID: requestID,
		Name:      input.Name,
		Contact:   input.Contact,
		Required:  input.Required,
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.InsertRecipientTx(ctx, tx, recipient); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"recipientId": recipient.ID,
		"name":        recipient.Name,
		"required":    recipient.Required,
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, RequestScope(requestID), "recipient_added", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return recipient, nil
}

// MarkNotified records that the recipient was told about the request. The
// record is the source of truth; the email that follows is best effort and
// a delivery failure never unwinds the notification.
func (s *Service) MarkNotified(ctx context.Context, kind Kind, requestID, recipientID, actorID string) (*Recipient, error) {
	request, err := s.store.GetRequest(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, ErrRequestClosed
	}

	recipient, err := s.store.GetRecipient(ctx, requestID, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient.NotifiedAt != nil {
		return nil, ErrAlreadyNotified
	}

	now := time.Now().UTC()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.MarkNotifiedTx(ctx, tx, recipientID, actorID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyNotified
	}

	payload := map[string]any{
		"recipientId": recipient.ID,
		"name":        recipient.Name,
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, RequestScope(requestID), "recipient_notified", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if recipient.Contact != "" {
		subject := fmt.Sprintf("Notice regarding %s request %s", kind, request.SequenceCode)
		body := fmt.Sprintf(
			"Records disclosed to you concerning data subject %s are affected by %s request %s. Please action this notice and confirm receipt.",
			request.SubjectID, kind, request.SequenceCode,
		)
		if err := s.mailer.Send(ctx, s.from, recipient.Contact, subject, body); err != nil {
			slog.Warn("recipient notification email failed", "recipient", recipient.ID, "err", err)
		}
	}

	return s.store.GetRecipient(ctx, requestID, recipientID)
}

// ConfirmReceipt records the recipient's acknowledgement. Confirmations
// arrive on the recipient's schedule, so this stays open after completion.
func (s *Service) ConfirmReceipt(ctx context.Context, kind Kind, requestID, recipientID, actorID string) (*Recipient, error) {
	if _, err := s.store.GetRequest(ctx, kind, requestID); err != nil {
		return nil, err
	}

	recipient, err := s.store.GetRecipient(ctx, requestID, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient.NotifiedAt == nil {
		return nil, ErrNotNotified
	}
	if recipient.ConfirmedAt != nil {
		return nil, ErrAlreadyConfirmed
	}

	now := time.Now().UTC()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.ConfirmReceiptTx(ctx, tx, recipientID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyConfirmed
	}

	payload := map[string]any{
		"recipientId": recipient.ID,
	}
	if _, err := s.ledger.ContinueTx(ctx, tx, RequestScope(requestID), "receipt_confirmed", actorID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.store.GetRecipient(ctx, requestID, recipientID)
}
