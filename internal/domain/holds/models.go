package holds

import "time"

// LegalHold freezes data against destructive operations. Nil SubjectIDs
// means the hold covers all subjects; nil Categories means all categories.
type LegalHold struct {
	ID            string     `json:"id"`
	HoldType      HoldType   `json:"holdType"`
	SubjectIDs    []string   `json:"subjectIds,omitempty"`
	Categories    []string   `json:"categories,omitempty"`
	Reason        string     `json:"reason"`
	LegalBasis    string     `json:"legalBasis,omitempty"`
	Active        bool       `json:"active"`
	CreatedBy     string     `json:"createdBy"`
	CreatedAt     time.Time  `json:"createdAt"`
	ReleasedBy    string     `json:"releasedBy,omitempty"`
	ReleasedAt    *time.Time `json:"releasedAt,omitempty"`
	ReleaseReason string     `json:"releaseReason,omitempty"`
}

type CreateHoldInput struct {
	HoldType      HoldType `json:"holdType"`
	SubjectIDs    []string `json:"subjectIds"`
	AllSubjects   bool     `json:"allSubjects"`
	Categories    []string `json:"categories"`
	AllCategories bool     `json:"allCategories"`
	Reason        string   `json:"reason"`
	LegalBasis    string   `json:"legalBasis"`
}

type CheckResult struct {
	IsHeld        bool        `json:"isHeld"`
	MatchingHolds []LegalHold `json:"matchingHolds,omitempty"`
}

type Statistics struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Released int            `json:"released"`
	ByType   map[string]int `json:"byType"`
}
