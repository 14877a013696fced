package holds

// HoldType is the closed set of grounds a legal hold can be placed on.
type HoldType string

const (
	HoldLitigation    HoldType = "LITIGATION"
	HoldRegulatory    HoldType = "REGULATORY_INQUIRY"
	HoldInvestigation HoldType = "INTERNAL_INVESTIGATION"
	HoldAudit         HoldType = "AUDIT"
)

func (t HoldType) Valid() bool {
	switch t {
	case HoldLitigation, HoldRegulatory, HoldInvestigation, HoldAudit:
		return true
	}
	return false
}

// MinReasonLength applies to both placing and releasing a hold. Holds block
// statutory obligations, so a one-word justification is not acceptable.
const MinReasonLength = 20
