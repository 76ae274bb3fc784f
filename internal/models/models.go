package models

// All lists every table the service owns, in migration order.
func All() []any {
	return []any{
		&ProcessedEvent{},
		&InboundEvent{},
		&SyncClaim{},
		&UserProfile{},
		&Subscription{},
		&DailyUsageStat{},
		&PlanChangeRecord{},
		&RetryQueueItem{},
		&AuditLogEntry{},
	}
}
