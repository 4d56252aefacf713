package domain

const (
	RoleAdmin     = "ADMIN"
	RoleAffiliate = "AFFILIATE"
	RoleLearner   = "LEARNER"
)

// Payment statuses. A payment only ever moves pending -> completed or
// pending -> failed, never backward.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

const (
	PaymentTypeMembership = "membership"
	PaymentTypeRenewal    = "renewal"
)

// Referral link variants: which promotional link the buyer clicked,
// independent of what they bought.
const (
	LinkTypeLearner = "learner"
	LinkTypeDcs     = "dcs"
)

const (
	PurchaseTypeLearner    = "learner"
	PurchaseTypeLearnerDcs = "learner_dcs"
)

const (
	CommissionLearnerInitial = "learner_initial"
	CommissionDcsAddon       = "dcs_addon"
)

const (
	CommissionAvailable = "available"
	CommissionWithdrawn = "withdrawn"
)

// Commission schedule in USD cents. Fixed, no runtime configuration:
// every referral earns the learner_initial credit; dcs-link referrals
// earn the addon bonus on top regardless of the buyer's package.
const (
	CommissionBaseCents     int64 = 1000
	CommissionLearnerCents  int64 = 800
	CommissionDcsBonusCents int64 = 200
	CommissionLearnerRate         = "0.80"
)

const ReferralCompleted = "completed"

// Withdrawal statuses.
const (
	WithdrawalPending    = "PENDING"
	WithdrawalApproved   = "APPROVED"
	WithdrawalRejected   = "REJECTED"
	WithdrawalProcessing = "PROCESSING"
	WithdrawalPaid       = "PAID"
	WithdrawalFailed     = "FAILED"
)

const (
	PayoutChannelBank        = "bank"
	PayoutChannelMobileMoney = "mobile_money"
)

// Batch statuses.
const (
	BatchDraft              = "DRAFT"
	BatchReady              = "READY"
	BatchProcessing         = "PROCESSING"
	BatchCompleted          = "COMPLETED"
	BatchPartiallyCompleted = "PARTIALLY_COMPLETED"
	BatchFailed             = "FAILED"
)

// Audit actions, one per withdrawal state transition.
const (
	AuditApprove    = "approve"
	AuditReject     = "reject"
	AuditMarkPaid   = "mark_paid"
	AuditMarkFailed = "mark_failed"
	AuditProcessing = "mark_processing"
)

const (
	OutboxPending   = "pending"
	OutboxProcessed = "processed"
	OutboxFailed    = "failed"
)

const EventReferralAttribution = "referral.attribution"

const BaseCurrency = "USD"
