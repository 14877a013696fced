package rights

import "time"

type Request struct {
	ID              string        `json:"id"`
	Kind            Kind          `json:"kind"`
	SequenceCode    string        `json:"sequenceCode"`
	SubjectID       string        `json:"subjectId"`
	SubjectName     string        `json:"subjectName,omitempty"`
	Grounds         string        `json:"grounds,omitempty"`
	Detail          string        `json:"detail,omitempty"`
	Status          RequestStatus `json:"status"`
	ReceivedAt      time.Time     `json:"receivedAt"`
	DueAt           time.Time     `json:"dueAt"`
	ExtendedDueAt   *time.Time    `json:"extendedDueAt,omitempty"`
	ExtensionReason string        `json:"extensionReason,omitempty"`
	Extended        bool          `json:"extended"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
	ClosedBy        string        `json:"closedBy,omitempty"`
	CloseReason     string        `json:"closeReason,omitempty"`
	CreatedBy       string        `json:"createdBy"`
	EntryHash       string        `json:"entryHash"`
	PreviousHash    string        `json:"previousHash"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// EffectiveDueAt is the deadline currently in force.
func (r *Request) EffectiveDueAt() time.Time {
	if r.ExtendedDueAt != nil {
		return *r.ExtendedDueAt
	}
	return r.DueAt
}

type Item struct {
	ID               string        `json:"id"`
	RequestID        string        `json:"requestId"`
	RecordTable      string        `json:"recordTable"`
	RecordKey        string        `json:"recordKey"`
	Category         string        `json:"category,omitempty"`
	Description      string        `json:"description,omitempty"`
	Status           ItemStatus    `json:"status"`
	HoldReason       string        `json:"holdReason,omitempty"`
	OldValue         string        `json:"oldValue,omitempty"`
	NewValue         string        `json:"newValue,omitempty"`
	ErasureMethod    ErasureMethod `json:"erasureMethod,omitempty"`
	ReviewedBy       string        `json:"reviewedBy,omitempty"`
	ReviewedAt       *time.Time    `json:"reviewedAt,omitempty"`
	ReviewReason     string        `json:"reviewReason,omitempty"`
	AppliedBy        string        `json:"appliedBy,omitempty"`
	AppliedAt        *time.Time    `json:"appliedAt,omitempty"`
	ChangeSummary    string        `json:"changeSummary,omitempty"`
	VerificationHash string        `json:"verificationHash,omitempty"`
	LiftedBy         string        `json:"liftedBy,omitempty"`
	LiftedAt         *time.Time    `json:"liftedAt,omitempty"`
	LiftReason       string        `json:"liftReason,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

type Recipient struct {
	ID          string     `json:"id"`
	RequestID   string     `json:"requestId"`
	Name        string     `json:"name"`
	Contact     string     `json:"contact,omitempty"`
	Required    bool       `json:"required"`
	NotifiedAt  *time.Time `json:"notifiedAt,omitempty"`
	NotifiedBy  string     `json:"notifiedBy,omitempty"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type CreateRequestInput struct {
	Kind        Kind   `json:"kind"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	Grounds     string `json:"grounds"`
	Detail      string `json:"detail"`
}

type AddItemInput struct {
	RecordTable   string        `json:"recordTable"`
	RecordKey     string        `json:"recordKey"`
	Category      string        `json:"category"`
	Description   string        `json:"description"`
	OldValue      string        `json:"oldValue"`
	NewValue      string        `json:"newValue"`
	ErasureMethod ErasureMethod `json:"erasureMethod"`
}

type AddRecipientInput struct {
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Required bool   `json:"required"`
}

// ItemSummary counts items by the state they ended in.
type ItemSummary struct {
	Pending  int `json:"pending"`
	OnHold   int `json:"onHold"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Applied  int `json:"applied"`
	Executed int `json:"executed"`
	Lifted   int `json:"lifted"`
}

type Statistics struct {
	Kind              Kind           `json:"kind"`
	Total             int            `json:"total"`
	ByStatus          map[string]int `json:"byStatus"`
	Overdue           int            `json:"overdue"`
	AvgCompletionDays float64        `json:"avgCompletionDays"`
}
