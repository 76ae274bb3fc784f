package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/sunes26/SummaryGenie-Page-sub000/internal/app/api/middleware"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/idempotency"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/reconcile"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/response"
)

type Reconciler interface {
	Sync(ctx context.Context, actorID, userID string) (*reconcile.SyncResult, error)
	Cancel(ctx context.Context, userID string) (*reconcile.SyncResult, error)
}

type alreadyInProgressResponse struct {
	Success           bool `json:"success"`
	AlreadyInProgress bool `json:"alreadyInProgress"`
}

func writeSyncError(c *gin.Context, log *zap.SugaredLogger, err error) {
	lg := logctx.FromGin(c, log)
	switch {
	case errors.Is(err, reconcile.ErrAlreadyInProgress):
		c.JSON(http.StatusTooManyRequests, alreadyInProgressResponse{AlreadyInProgress: true})
	case errors.Is(err, reconcile.ErrNoSubscription), errors.Is(err, paddle.ErrNotFound):
		c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, nil))
	case errors.Is(err, apperr.ErrOwnershipViolation):
		lg.Warnw("sync_ownership_rejected", "err", err)
		c.JSON(http.StatusForbidden, response.ErrorT[any](response.APIResponseCodeForbidden, nil))
	case errors.Is(err, idempotency.ErrUnavailable):
		lg.Errorw("sync_admission_unavailable", "err", err)
		c.JSON(http.StatusServiceUnavailable, response.ErrorT[any](response.APIResponseCodeUnavailable, nil))
	default:
		lg.Errorw("sync_failed", "err", err)
		c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
	}
}

// ApiSubscriptionSync handles POST /api/v1/subscription/sync for the caller.
//
// @Summary      Sync Subscription
// @Description  Pulls the caller's subscription from the provider, at most once per window.
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  reconcile.SyncResult
// @Failure      401  {object}  handlers.RespOK
// @Failure      429  {object}  handlers.alreadyInProgressResponse
// @Router       /api/v1/subscription/sync [post]
func ApiSubscriptionSync(rc Reconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(mw.GinUserIDKey)
		res, err := rc.Sync(c.Request.Context(), userID, userID)
		if err != nil {
			writeSyncError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// ApiSubscriptionCancel handles POST /api/v1/subscription/cancel. The
// subscription stays premium until the end of the billing period.
//
// @Summary      Cancel Subscription
// @Description  Schedules cancellation at period end and applies the provider's answer.
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  reconcile.SyncResult
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/subscription/cancel [post]
func ApiSubscriptionCancel(rc Reconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := rc.Cancel(c.Request.Context(), c.GetString(mw.GinUserIDKey))
		if err != nil {
			writeSyncError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, rc Reconciler, log *zap.SugaredLogger) {
	r.POST("/sync", ApiSubscriptionSync(rc, log))
	r.POST("/cancel", ApiSubscriptionCancel(rc, log))
}
