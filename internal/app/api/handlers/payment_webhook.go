package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/idempotency"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/signature"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/webhook"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/response"
)

// maxWebhookBody bounds the raw body read before verification.
const maxWebhookBody = 1 << 20

type WebhookHandler interface {
	Handle(ctx context.Context, header string, body []byte) (*webhook.Result, error)
}

type webhookResponse struct {
	Success   bool   `json:"success"`
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
}

// webhookStatus maps a delivery error to the status the provider sees.
// Only 5xx responses make the provider redeliver.
func webhookStatus(err error) (int, response.APIResponseCode) {
	switch {
	case errors.Is(err, apperr.ErrAuthentication):
		return http.StatusUnauthorized, response.APIResponseCodeUnauthorized
	case errors.Is(err, apperr.ErrMalformed),
		errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrOwnershipViolation):
		return http.StatusBadRequest, response.APIResponseCodeBadRequest
	case errors.Is(err, idempotency.ErrUnavailable):
		return http.StatusServiceUnavailable, response.APIResponseCodeUnavailable
	default:
		return http.StatusInternalServerError, response.APIResponseCodeError
	}
}

func signatureHeader(c *gin.Context) string {
	if v := c.GetHeader(signature.HeaderName); v != "" {
		return v
	}
	return c.GetHeader(signature.LegacyHeaderName)
}

// ApiPaddleWebhook handles POST /api/v1/webhook/paddle. The body is passed
// through untouched for signature verification.
//
// @Summary      Paddle Webhook
// @Description  Receives billing notifications signed with the Paddle-Signature header. Duplicate and unknown events answer 200.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        Paddle-Signature  header  string  true  "ts=<unix>;h1=<hex hmac>"
// @Param        payload           body    string  true  "Raw notification envelope"
// @Success      200  {object}  handlers.webhookResponse
// @Failure      400  {object}  handlers.RespOK
// @Failure      401  {object}  handlers.RespOK
// @Failure      413  {object}  handlers.RespOK
// @Failure      500  {object}  handlers.RespOK
// @Failure      503  {object}  handlers.RespOK
// @Router       /api/v1/webhook/paddle [post]
func ApiPaddleWebhook(h WebhookHandler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, log)
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				lg.Warnw("webhook_body_too_large", "limit", tooLarge.Limit)
				c.JSON(http.StatusRequestEntityTooLarge, response.ErrorT[any](response.APIResponseCodeTooLarge, nil))
				return
			}
			lg.Warnw("webhook_body_read_error", "err", err)
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, nil))
			return
		}

		res, err := h.Handle(c.Request.Context(), signatureHeader(c), body)
		if err != nil {
			status, code := webhookStatus(err)
			lg.Infow("webhook_paddle_rejected", "status", status)
			c.JSON(status, response.ErrorT[any](code, nil))
			return
		}
		c.JSON(http.StatusOK, webhookResponse{Success: true, EventID: res.EventID, EventType: res.EventType})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, h WebhookHandler, log *zap.SugaredLogger) {
	r.POST("/paddle", ApiPaddleWebhook(h, log))
}
