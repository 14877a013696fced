package rights

import (
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

func ValidateCreate(input CreateRequestInput) error {
	if !input.Kind.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(input.SubjectID) == "" {
		return ErrSubjectRequired
	}
	return ValidateGrounds(input.Kind, input.Grounds)
}

// ValidateGrounds enforces the closed vocabulary of the kind. Rectification
// has no grounds vocabulary and must not carry one.
func ValidateGrounds(kind Kind, grounds string) error {
	switch kind {
	case KindErasure:
		if !erasureGrounds[grounds] {
			return ErrInvalidGrounds
		}
	case KindRestriction:
		if !restrictionGrounds[grounds] {
			return ErrInvalidGrounds
		}
	case KindObjection:
		if !objectionTypes[grounds] {
			return ErrInvalidGrounds
		}
	case KindRectification:
		if grounds != "" {
			return ErrInvalidGrounds
		}
	default:
		return ErrInvalidKind
	}
	return nil
}

func ValidateItem(kind Kind, input AddItemInput) error {
	if strings.TrimSpace(input.RecordTable) == "" || strings.TrimSpace(input.RecordKey) == "" {
		return ErrRecordRequired
	}
	switch kind {
	case KindErasure:
		if !input.ErasureMethod.Valid() {
			return ErrInvalidMethod
		}
	case KindRectification:
		if strings.TrimSpace(input.NewValue) == "" {
			return ErrValuesRequired
		}
	}
	return nil
}

// IsAbsolute reports whether the request exercises an absolute right, one
// the controller has no path to refuse.
func IsAbsolute(kind Kind, grounds string) bool {
	return kind == KindObjection && grounds == ObjectionDirectMarketing
}

func SequenceCode(kind Kind, year, counter int) string {
	return fmt.Sprintf("%s-%d-%06d", kind.Prefix(), year, counter)
}

// DueDate computes the statutory answer deadline from the receipt time.
func DueDate(receivedAt time.Time) time.Time {
	return receivedAt.AddDate(0, 0, StatutoryWindowDays)
}

func ValidateExtension(days int, reason string) error {
	if days < 1 || days > MaxExtensionDays {
		return ErrInvalidExtension
	}
	if len(strings.TrimSpace(reason)) < MinReviewReasonLength {
		return ErrReviewReasonTooShort
	}
	return nil
}

// CanComplete checks every completion precondition and returns the first
// violated one: no item may be pending or on hold, every approved item must
// have been applied or executed, and every required recipient must have
// been notified.
func CanComplete(items []Item, recipients []Recipient) error {
	summary := SummarizeItems(items)
	if summary.Pending > 0 || summary.OnHold > 0 {
		return ErrItemsUnresolved
	}
	if summary.Approved > 0 {
		return ErrItemsUnapplied
	}
	for _, recipient := range recipients {
		if recipient.Required && recipient.NotifiedAt == nil {
			return ErrNotificationsOutstanding
		}
	}
	return nil
}

func SummarizeItems(items []Item) ItemSummary {
	var summary ItemSummary
	for _, item := range items {
		switch item.Status {
		case ItemPending:
			summary.Pending++
		case ItemOnHold:
			summary.OnHold++
		case ItemApproved:
			summary.Approved++
		case ItemRejected:
			summary.Rejected++
		case ItemApplied:
			summary.Applied++
		case ItemExecuted:
			summary.Executed++
		case ItemLifted:
			summary.Lifted++
		}
	}
	return summary
}

// ChangeSummary records what a rectification changed, compactly enough to
// live in an audit payload: character counts plus the diff delta.
func ChangeSummary(oldValue, newValue string) string {
	if oldValue == newValue {
		return "no change"
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldValue, newValue, false)

	var removed, added int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			removed += len(d.Text)
		case diffmatchpatch.DiffInsert:
			added += len(d.Text)
		}
	}
	return fmt.Sprintf("-%d +%d chars; delta %s", removed, added, dmp.DiffToDelta(diffs))
}
