package rights

import "errors"

var (
	ErrRequestNotFound   = errors.New("rights request not found")
	ErrItemNotFound      = errors.New("request item not found")
	ErrRecipientNotFound = errors.New("third-party recipient not found")

	ErrInvalidKind     = errors.New("unknown request kind")
	ErrSubjectRequired = errors.New("subject id is required")
	ErrInvalidGrounds  = errors.New("grounds not in the vocabulary for this kind")
	ErrRecordRequired  = errors.New("record table and key are required")
	ErrValuesRequired  = errors.New("rectification items need the corrected value")
	ErrInvalidMethod   = errors.New("unknown erasure method")
	ErrInvalidDecision = errors.New("decision must be approved or rejected")
	ErrRecipientName   = errors.New("recipient name is required")

	// State preconditions. Each names exactly what blocked the transition.
	ErrRequestClosed       = errors.New("request is already in a terminal status")
	ErrItemOnHold          = errors.New("item is blocked by an active legal hold")
	ErrItemAlreadyReviewed = errors.New("item has already been reviewed")
	ErrItemNotApproved     = errors.New("item must be approved before it can be applied")
	ErrItemNotApplied      = errors.New("restriction must be applied before it can be lifted")
	ErrNotRestriction      = errors.New("only restriction items can be lifted")
	ErrWrongKindVerb       = errors.New("erasure items are executed, all other kinds are applied")
	ErrItemsUnresolved     = errors.New("request has items still pending or on hold")
	ErrItemsUnapplied      = errors.New("request has approved items not yet applied")

	ErrNotificationsOutstanding = errors.New("required third-party notifications not yet sent")
	ErrAlreadyNotified          = errors.New("recipient has already been notified")
	ErrNotNotified              = errors.New("recipient must be notified before confirming receipt")
	ErrAlreadyConfirmed         = errors.New("recipient receipt is already confirmed")

	ErrAlreadyExtended      = errors.New("due date extension has already been used")
	ErrInvalidExtension     = errors.New("extension must be between 1 and 60 days")
	ErrAbsoluteRight        = errors.New("direct marketing objections are absolute and cannot be rejected or overridden")
	ErrReviewReasonTooShort = errors.New("reason must be at least 10 characters")
	ErrCloseReasonTooShort  = errors.New("closing reason must be at least 20 characters")
)
