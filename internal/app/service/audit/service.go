// Package audit appends state-transition records. Writes never fail the
// caller.
package audit

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
)

type Recorder interface {
	Record(ctx context.Context, entry *models.AuditLogEntry)
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now tool.Clock
}

var _ Recorder = (*Service)(nil)

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: tool.UTCNow}
}

func NewWithClock(db *gorm.DB, log *zap.SugaredLogger, now tool.Clock) *Service {
	return &Service{db: db, log: log, now: now}
}

// Record persists entry. It must not be called inside the transaction whose
// outcome it describes. Nil input is ignored; failures are logged.
func (s *Service) Record(ctx context.Context, entry *models.AuditLogEntry) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if entry.Metadata == nil {
		entry.Metadata = datatypes.JSONMap{}
	}
	// the request may already be canceled; the record should still land
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(entry).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to write audit log",
			"action", entry.Action,
			"event_id", entry.EventID,
			"user_id", entry.UserID,
			"err", err,
		)
	}
}

// Snapshot wraps a subscription for the before/after columns.
func Snapshot(s *models.Subscription) datatypes.JSONType[*models.Subscription] {
	return datatypes.NewJSONType(s.Clone())
}

var Module = fx.Options(
	fx.Provide(
		New,
		func(s *Service) Recorder { return s },
	),
)
