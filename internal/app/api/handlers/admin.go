package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/sunes26/SummaryGenie-Page-sub000/internal/app/api/middleware"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/retry"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/response"
)

type RetryLister interface {
	List(ctx context.Context, req *retry.ScanRequest) (*retry.ScanResponse, error)
}

type adminSyncRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ApiAdminSync handles POST /api/v1/admin/sync. The window is keyed on the
// operator and the target user.
//
// @Summary      Sync User Subscription (Admin)
// @Description  Reconciles another user's subscription on behalf of an operator.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body handlers.adminSyncRequest true "Target user"
// @Success      200  {object}  reconcile.SyncResult
// @Failure      403  {object}  handlers.RespOK
// @Router       /api/v1/admin/sync [post]
func ApiAdminSync(rc Reconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req adminSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, nil))
			return
		}
		operator := c.GetString(mw.GinUserIDKey)
		logctx.FromGin(c, log).Infow("admin_sync", "operator_id", operator, "target_user_id", req.UserID)
		res, err := rc.Sync(c.Request.Context(), operator, req.UserID)
		if err != nil {
			writeSyncError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// ApiAdminRetryItems handles POST /api/v1/admin/retry_items.
//
// @Summary      List Retry Items (Admin)
// @Description  Retrieves a paginated and filterable list of failed deliveries awaiting replay.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body retry.ScanRequest true "Filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespRetryItems
// @Router       /api/v1/admin/retry_items [post]
func ApiAdminRetryItems(lister RetryLister, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req retry.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, nil))
			return
		}
		res, err := lister.List(c.Request.Context(), &req)
		if err != nil {
			if errors.Is(err, apperr.ErrValidation) {
				c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			logctx.FromGin(c, log).Errorw("list_retry_items_failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, rc Reconciler, lister RetryLister, log *zap.SugaredLogger) {
	r.POST("/sync", ApiAdminSync(rc, log))
	r.POST("/retry_items", ApiAdminRetryItems(lister, log))
}
