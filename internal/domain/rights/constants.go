package rights

// Kind selects which of the four subject-rights workflows a request runs
// under. All kinds share one engine; behavior differences are confined to
// vocabulary validation, the apply verb and the absolute-right rule.
type Kind string

const (
	KindErasure       Kind = "erasure"
	KindRectification Kind = "rectification"
	KindRestriction   Kind = "restriction"
	KindObjection     Kind = "objection"
)

func (k Kind) Valid() bool {
	switch k {
	case KindErasure, KindRectification, KindRestriction, KindObjection:
		return true
	}
	return false
}

// Prefix is the sequence-code prefix, e.g. ERA-2026-000042.
func (k Kind) Prefix() string {
	switch k {
	case KindErasure:
		return "ERA"
	case KindRectification:
		return "REC"
	case KindRestriction:
		return "RES"
	case KindObjection:
		return "OBJ"
	}
	return "REQ"
}

func Kinds() []Kind {
	return []Kind{KindErasure, KindRectification, KindRestriction, KindObjection}
}

type RequestStatus string

const (
	StatusReceived   RequestStatus = "received"
	StatusLegalHold  RequestStatus = "legal_hold"
	StatusCompleted  RequestStatus = "completed"
	StatusRejected   RequestStatus = "rejected"
	StatusOverridden RequestStatus = "overridden"
)

func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusOverridden:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemPending  ItemStatus = "pending"
	ItemOnHold   ItemStatus = "on_hold"
	ItemApproved ItemStatus = "approved"
	ItemRejected ItemStatus = "rejected"
	ItemApplied  ItemStatus = "applied"
	ItemExecuted ItemStatus = "executed"
	ItemLifted   ItemStatus = "lifted"
)

// Grounds vocabularies are closed per kind. Rectification carries no
// grounds; its requests are justified by the old/new values on their items.
const (
	GroundConsentWithdrawn   = "CONSENT_WITHDRAWN"
	GroundNoLongerNecessary  = "NO_LONGER_NECESSARY"
	GroundUnlawfulProcessing = "UNLAWFUL_PROCESSING"
	GroundLegalObligation    = "LEGAL_OBLIGATION"
	GroundObjectionUpheld    = "OBJECTION_UPHELD"

	GroundAccuracyContested  = "ACCURACY_CONTESTED"
	GroundProcessingUnlawful = "PROCESSING_UNLAWFUL"
	GroundNoLongerNeeded     = "NO_LONGER_NEEDED_BY_CONTROLLER"
	GroundObjectionPending   = "OBJECTION_PENDING"

	ObjectionDirectMarketing     = "DIRECT_MARKETING"
	ObjectionLegitimateInterests = "LEGITIMATE_INTERESTS"
	ObjectionResearchStatistics  = "RESEARCH_STATISTICS"
	ObjectionPublicTask          = "PUBLIC_TASK"
)

var erasureGrounds = map[string]bool{
	GroundConsentWithdrawn:   true,
	GroundNoLongerNecessary:  true,
	GroundUnlawfulProcessing: true,
	GroundLegalObligation:    true,
	GroundObjectionUpheld:    true,
}

var restrictionGrounds = map[string]bool{
	GroundAccuracyContested:  true,
	GroundProcessingUnlawful: true,
	GroundNoLongerNeeded:     true,
	GroundObjectionPending:   true,
}

var objectionTypes = map[string]bool{
	ObjectionDirectMarketing:     true,
	ObjectionLegitimateInterests: true,
	ObjectionResearchStatistics:  true,
	ObjectionPublicTask:          true,
}

// ErasureMethod is how an executed erasure item disposed of the data.
type ErasureMethod string

const (
	MethodHardDelete   ErasureMethod = "HARD_DELETE"
	MethodAnonymize    ErasureMethod = "ANONYMIZE"
	MethodPseudonymize ErasureMethod = "PSEUDONYMIZE"
	MethodCryptoShred  ErasureMethod = "CRYPTO_SHRED"
)

func (m ErasureMethod) Valid() bool {
	switch m {
	case MethodHardDelete, MethodAnonymize, MethodPseudonymize, MethodCryptoShred:
		return true
	}
	return false
}

const (
	// StatutoryWindowDays is the answer deadline counted from receipt.
	StatutoryWindowDays = 30
	// MaxExtensionDays bounds the single permitted due-date extension.
	MaxExtensionDays = 60

	MinCloseReasonLength  = 20
	MinReviewReasonLength = 10
)
