package types

type AuditSeverity string

const (
	AuditSeverityInfo     AuditSeverity = "info"
	AuditSeverityWarning  AuditSeverity = "warning"
	AuditSeverityError    AuditSeverity = "error"
	AuditSeverityCritical AuditSeverity = "critical"
)

type AuditAction string

const (
	AuditActionSubscriptionCreated  AuditAction = "subscription_created"
	AuditActionSubscriptionUpdated  AuditAction = "subscription_updated"
	AuditActionSubscriptionCanceled AuditAction = "subscription_canceled"
	AuditActionSubscriptionPastDue  AuditAction = "subscription_past_due"
	AuditActionSubscriptionPaused   AuditAction = "subscription_paused"
	AuditActionSubscriptionResumed  AuditAction = "subscription_resumed"
	AuditActionSubscriptionSynced   AuditAction = "subscription_synced"
	AuditActionPlanChanged          AuditAction = "plan_changed"
	AuditActionPaymentSucceeded     AuditAction = "payment_succeeded"
	AuditActionPaymentFailed        AuditAction = "payment_failed"
	AuditActionPaymentRefunded      AuditAction = "payment_refunded"
	AuditActionPremiumReset         AuditAction = "premium_reset"
	AuditActionHandlerFailed        AuditAction = "handler_failed"
	AuditActionOwnershipViolation   AuditAction = "ownership_violation"
	AuditActionValidationFailed     AuditAction = "validation_failed"
	AuditActionRetryResolved        AuditAction = "retry_resolved"
	AuditActionRetryExpired         AuditAction = "retry_expired"
)

// Actors recorded on audit entries.
const (
	ActorWebhook     = "webhook"
	ActorRetryWorker = "retry_worker"
)

// ActorUser formats the actor for user- or operator-triggered syncs.
func ActorUser(id string) string { return "user:" + id }

// VerificationOutcome records whether a completed payment could be matched to
// a premium subscription at the provider.
type VerificationOutcome string

const (
	VerificationSuccess VerificationOutcome = "success"
	VerificationFailed  VerificationOutcome = "failed"
	VerificationError   VerificationOutcome = "error"
)

type RetryStatus string

const (
	RetryStatusPending  RetryStatus = "pending"
	RetryStatusResolved RetryStatus = "resolved"
	RetryStatusExpired  RetryStatus = "expired"
)
