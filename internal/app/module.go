package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/api/server"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/audit"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/fanout"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/idempotency"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/inbound"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/reconcile"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/retry"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/signature"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/subscription"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/userdir"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/webhook"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/worker"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/cache"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/db"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logger"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	cache.Module,
	paddle.Module,
	userdir.Module,
	audit.Module,
	signature.Module,
	idempotency.Module,
	inbound.Module,
	fanout.Module,
	subscription.Module,
	reconcile.Module,
	retry.Module,
	webhook.Module,
	worker.Module,
	server.Module,
)
