package retention

import "time"

type Policy struct {
	ID             string       `json:"id"`
	Category       string       `json:"category"`
	RetentionDays  int          `json:"retentionDays"`
	ActionOnExpiry PolicyAction `json:"actionOnExpiry"`
	Description    string       `json:"description,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Record tracks one data unit against its policy. Expiry is a computed
// value; nothing fires when it passes, enforcement pulls via ScanExpired.
type Record struct {
	ID             string       `json:"id"`
	PolicyID       string       `json:"policyId"`
	RecordTable    string       `json:"recordTable"`
	RecordKey      string       `json:"recordKey"`
	SubjectID      string       `json:"subjectId,omitempty"`
	Category       string       `json:"category"`
	CreatedDate    time.Time    `json:"createdDate"`
	ExpiryDate     time.Time    `json:"expiryDate"`
	Status         RecordStatus `json:"status"`
	ExtensionCount int          `json:"extensionCount"`
	Hold           bool         `json:"hold"`
	HoldReason     string       `json:"holdReason,omitempty"`
	ActionedAt     *time.Time   `json:"actionedAt,omitempty"`
	ActionedBy     string       `json:"actionedBy,omitempty"`
	ActionMethod   string       `json:"actionMethod,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// ExpiredRecord pairs a record due for enforcement with its policy action.
type ExpiredRecord struct {
	Record
	Action PolicyAction `json:"action"`
}

// RecordLock is the advisory per-record lock. Unrelated to legal holds:
// it coordinates operators, it does not freeze data.
type RecordLock struct {
	LockKey    string    `json:"lockKey"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExtendedAt time.Time `json:"extendedAt"`
}

type CreatePolicyInput struct {
	Category       string       `json:"category"`
	RetentionDays  int          `json:"retentionDays"`
	ActionOnExpiry PolicyAction `json:"actionOnExpiry"`
	Description    string       `json:"description"`
}

type RegisterInput struct {
	PolicyID    string    `json:"policyId"`
	Category    string    `json:"category"`
	RecordTable string    `json:"recordTable"`
	RecordKey   string    `json:"recordKey"`
	SubjectID   string    `json:"subjectId"`
	CreatedDate time.Time `json:"createdDate"`
}

// Enforcement reports what one enforcement pass did.
type Enforcement struct {
	Scanned    int `json:"scanned"`
	Deleted    int `json:"deleted"`
	Anonymized int `json:"anonymized"`
	Review     int `json:"review"`
	Skipped    int `json:"skipped"`
}

type Statistics struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	Held     int            `json:"held"`
	Policies int            `json:"policies"`
}
