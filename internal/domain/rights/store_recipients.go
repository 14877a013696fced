package rights

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const recipientColumns = `
    id, request_id, name, COALESCE(contact, ''), required, notified_at, COALESCE(notified_by, ''),
    confirmed_at, created_at`

func (s *Store) InsertRecipientTx(ctx context.Context, tx pgx.Tx, recipient *Recipient) error {
	return tx.QueryRow(ctx, `
    INSERT INTO third_party_recipients (request_id, name, contact, required)
    VALUES ($1,$2,NULLIF($3,''),$4)
    RETURNING id, created_at
  `, recipient.RequestID, recipient.Name, recipient.Contact, recipient.Required).
		Scan(&recipient.ID, &recipient.CreatedAt)
}

func (s *Store) GetRecipient(ctx context.Context, requestID, recipientID string) (*Recipient, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+recipientColumns+`
    FROM third_party_recipients
    WHERE id = $1 AND request_id = $2
  `, recipientID, requestID)
	recipient, err := scanRecipient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}
	return recipient, nil
}

func (s *Store) RecipientsByRequest(ctx context.Context, requestID string) ([]Recipient, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+recipientColumns+`
    FROM third_party_recipients
    WHERE request_id = $1
    ORDER BY created_at ASC
  `, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		recipient, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, *recipient)
	}
	return recipients, rows.Err()
}

func (s *Store) MarkNotifiedTx(ctx context.Context, tx pgx.Tx, recipientID, by string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE third_party_recipients
    SET notified_at = $3, notified_by = $2
    WHERE id = $1 AND notified_at IS NULL
  `, recipientID, by, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ConfirmReceiptTx(ctx context.Context, tx pgx.Tx, recipientID string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
    UPDATE third_party_recipients
    SET confirmed_at = $2
    WHERE id = $1 AND notified_at IS NOT NULL AND confirmed_at IS NULL
  `, recipientID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanRecipient(row pgx.Row) (*Recipient, error) {
	var recipient Recipient
	if err := row.Scan(&recipient.ID, &recipient.RequestID, &recipient.Name, &recipient.Contact,
		&recipient.Required, &recipient.NotifiedAt, &recipient.NotifiedBy,
		&recipient.ConfirmedAt, &recipient.CreatedAt); err != nil {
		return nil, err
	}
	return &recipient, nil
}
