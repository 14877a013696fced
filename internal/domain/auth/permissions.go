package auth

const (
	RoleAuditor = "auditor"
	RoleOfficer = "officer"
	RoleDPO     = "dpo"
	RoleAdmin   = "admin"
)

const (
	PermRightsRead       = "rights.read"
	PermRightsManage     = "rights.manage"
	PermRightsReview     = "rights.review"
	PermHoldsRead        = "holds.read"
	PermHoldsManage      = "holds.manage"
	PermRetentionRead    = "retention.read"
	PermRetentionManage  = "retention.manage"
	PermRetentionEnforce = "retention.enforce"
	PermLedgerRead       = "ledger.read"
	PermLedgerVerify     = "ledger.verify"
	PermReportsRead      = "reports.read"
)

var DefaultPermissions = []string{
	PermRightsRead,
	PermRightsManage,
	PermRightsReview,
	PermHoldsRead,
	PermHoldsManage,
	PermRetentionRead,
	PermRetentionManage,
	PermRetentionEnforce,
	PermLedgerRead,
	PermLedgerVerify,
	PermReportsRead,
}

var RolePermissions = map[string][]string{
	RoleAuditor: {
		PermRightsRead,
		PermHoldsRead,
		PermRetentionRead,
		PermLedgerRead,
		PermLedgerVerify,
		PermReportsRead,
	},
	RoleOfficer: {
		PermRightsRead,
		PermRightsManage,
		PermHoldsRead,
		PermRetentionRead,
		PermRetentionManage,
		PermLedgerRead,
		PermReportsRead,
	},
	RoleDPO: {
		PermRightsRead,
		PermRightsManage,
		PermRightsReview,
		PermHoldsRead,
		PermHoldsManage,
		PermRetentionRead,
		PermRetentionManage,
		PermRetentionEnforce,
		PermLedgerRead,
		PermLedgerVerify,
		PermReportsRead,
	},
	RoleAdmin: {
		PermRightsRead,
		PermRightsManage,
		PermRightsReview,
		PermHoldsRead,
		PermHoldsManage,
		PermRetentionRead,
		PermRetentionManage,
		PermRetentionEnforce,
		PermLedgerRead,
		PermLedgerVerify,
		PermReportsRead,
	},
}
