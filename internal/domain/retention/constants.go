package retention

// RecordStatus is the lifecycle state of a tracked record.
type RecordStatus string

const (
	StatusActive     RecordStatus = "active"
	StatusExpired    RecordStatus = "expired"
	StatusDeleted    RecordStatus = "deleted"
	StatusAnonymized RecordStatus = "anonymized"
	StatusLegalHold  RecordStatus = "legal_hold"
)

// Terminal statuses admit no further transitions.
func (s RecordStatus) Terminal() bool {
	return s == StatusDeleted || s == StatusAnonymized
}

// PolicyAction is what the enforcement pass does to an expired record.
// REVIEW leaves the record flagged for a human decision.
type PolicyAction string

const (
	ActionDelete    PolicyAction = "DELETE"
	ActionAnonymize PolicyAction = "ANONYMIZE"
	ActionReview    PolicyAction = "REVIEW"
)

func (a PolicyAction) Valid() bool {
	switch a {
	case ActionDelete, ActionAnonymize, ActionReview:
		return true
	}
	return false
}
