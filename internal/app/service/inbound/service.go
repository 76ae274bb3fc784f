// Package inbound keeps the raw log of admitted provider notifications.
package inbound

import (
	"context"
	"encoding/json"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now tool.Clock
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return NewWithClock(db, log, tool.UTCNow)
}

func NewWithClock(db *gorm.DB, log *zap.SugaredLogger, now tool.Clock) *Service {
	return &Service{db: db, log: log, now: now}
}

// Received stores ev with status received. A row for the same event id is
// left as is. Failures are logged, never returned.
func (s *Service) Received(ctx context.Context, ev *models.InboundEvent) {
	if ev == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = tool.GenerateUUIDV7()
	}
	if ev.TraceID == "" {
		ev.TraceID = logctx.TraceID(ctx)
	}
	now := s.now()
	ev.Status = models.InboundEventStatusReceived
	ev.CreatedAt, ev.UpdatedAt = now, now
	if len(ev.Data) == 0 {
		ev.Data = datatypes.JSON("null")
	}
	err := s.db.WithContext(context.WithoutCancel(ctx)).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(ev).Error
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to save inbound event %s: %v", ev.EventID, err)
	}
}

// Finish records the handling outcome of eventID.
func (s *Service) Finish(ctx context.Context, eventID string, status models.InboundEventStatus, result any) {
	updates := map[string]any{"status": status, "updated_at": s.now()}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("failed to encode inbound event result", "event_id", eventID, "err", err)
		} else {
			updates["result"] = datatypes.JSON(raw)
		}
	}
	err := s.db.WithContext(context.WithoutCancel(ctx)).Model(&models.InboundEvent{}).
		Where("event_id = ?", eventID).Updates(updates).Error
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to update inbound event %s: %v", eventID, err)
	}
}

// Get returns the logged event, or nil.
func (s *Service) Get(ctx context.Context, eventID string) (*models.InboundEvent, error) {
	var ev models.InboundEvent
	res := s.db.WithContext(ctx).Where("event_id = ?", eventID).Limit(1).Find(&ev)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &ev, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
