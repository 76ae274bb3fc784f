package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mw "github.com/sunes26/SummaryGenie-Page-sub000/internal/app/api/middleware"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/idempotency"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/reconcile"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/retry"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/signature"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/webhook"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

var nop = zap.NewNop().Sugar()

type stubWebhook struct {
	header string
	body   []byte
	res    *webhook.Result
	err    error
}

func (s *stubWebhook) Handle(_ context.Context, header string, body []byte) (*webhook.Result, error) {
	s.header, s.body = header, body
	return s.res, s.err
}

type stubReconciler struct {
	actorID, userID string
	res             *reconcile.SyncResult
	err             error
}

func (s *stubReconciler) Sync(_ context.Context, actorID, userID string) (*reconcile.SyncResult, error) {
	s.actorID, s.userID = actorID, userID
	return s.res, s.err
}

func (s *stubReconciler) Cancel(_ context.Context, userID string) (*reconcile.SyncResult, error) {
	s.userID = userID
	return s.res, s.err
}

type stubLister struct {
	req *retry.ScanRequest
	res *retry.ScanResponse
	err error
}

func (s *stubLister) List(_ context.Context, req *retry.ScanRequest) (*retry.ScanResponse, error) {
	s.req = req
	return s.res, s.err
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "jwt_test"
	return cfg
}

func newTestEngine(cfg *config.Config, wh WebhookHandler, rc Reconciler, lister RetryLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r)
	RegisterWebhookRoutes(r.Group("/api/v1/webhook"), wh, nop)
	sub := r.Group("/api/v1/subscription", mw.AuthMiddleware(cfg, nop))
	RegisterSubscriptionRoutes(sub, rc, nop)
	admin := r.Group("/api/v1/admin", mw.AuthMiddleware(cfg, nop), mw.RequireRole(cfg.Auth.OperatorRole))
	RegisterAdminRoutes(admin, rc, lister, nop)
	return r
}

func do(t *testing.T, r http.Handler, method, path, token string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	s, err := mw.Token("jwt_test", subject, role)
	require.NoError(t, err)
	return s
}

func TestHealthz(t *testing.T) {
	r := newTestEngine(testConfig(), &stubWebhook{}, &stubReconciler{}, &stubLister{})
	w := do(t, r, http.MethodGet, "/healthz", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestApiPaddleWebhook_Success(t *testing.T) {
	wh := &stubWebhook{res: &webhook.Result{EventID: "evt_1", EventType: "subscription.created", Outcome: webhook.OutcomeProcessed}}
	r := newTestEngine(testConfig(), wh, &stubReconciler{}, &stubLister{})

	body := []byte(`{"event_id":"evt_1"}`)
	w := do(t, r, http.MethodPost, "/api/v1/webhook/paddle", "", body, map[string]string{"Paddle-Signature": "ts=1;h1=ab"})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"success":true,"eventId":"evt_1","eventType":"subscription.created"}`, w.Body.String())
	require.Equal(t, "ts=1;h1=ab", wh.header)
	require.Equal(t, body, wh.body)
}

func TestApiPaddleWebhook_LegacyHeader(t *testing.T) {
	wh := &stubWebhook{res: &webhook.Result{}}
	r := newTestEngine(testConfig(), wh, &stubReconciler{}, &stubLister{})

	do(t, r, http.MethodPost, "/api/v1/webhook/paddle", "", []byte(`{}`), map[string]string{"signature": "ts=2;h1=cd"})
	require.Equal(t, "ts=2;h1=cd", wh.header)
}

func TestApiPaddleWebhook_BodyTooLarge(t *testing.T) {
	wh := &stubWebhook{res: &webhook.Result{}}
	r := newTestEngine(testConfig(), wh, &stubReconciler{}, &stubLister{})

	w := do(t, r, http.MethodPost, "/api/v1/webhook/paddle", "", bytes.Repeat([]byte("a"), maxWebhookBody+1), nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Nil(t, wh.body)

	w = do(t, r, http.MethodPost, "/api/v1/webhook/paddle", "", bytes.Repeat([]byte("a"), maxWebhookBody), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, wh.body, maxWebhookBody)
}

func TestApiPaddleWebhook_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: errors.Join(apperr.ErrAuthentication, errors.New("hash mismatch")), want: http.StatusUnauthorized},
		{err: apperr.ErrMalformed, want: http.StatusBadRequest},
		{err: apperr.NewValidation("subscription", "id"), want: http.StatusBadRequest},
		{err: apperr.Ownership("user u_1 does not exist"), want: http.StatusBadRequest},
		{err: idempotency.ErrUnavailable, want: http.StatusServiceUnavailable},
		{err: apperr.Transient(errors.New("secret db detail")), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		r := newTestEngine(testConfig(), &stubWebhook{err: tt.err}, &stubReconciler{}, &stubLister{})
		w := do(t, r, http.MethodPost, "/api/v1/webhook/paddle", "", []byte(`{}`), nil)
		require.Equal(t, tt.want, w.Code, tt.err.Error())
		require.NotContains(t, w.Body.String(), "secret db detail")
		require.Contains(t, w.Body.String(), `"success":false`)
	}
}

func TestApiSubscriptionSync(t *testing.T) {
	days := 3
	rc := &stubReconciler{res: &reconcile.SyncResult{Success: true, SubscriptionID: "sub_1", Status: types.SubscriptionStatusActive, IsPremium: true, DaysUntilRenewal: &days}}
	r := newTestEngine(testConfig(), &stubWebhook{}, rc, &stubLister{})

	w := do(t, r, http.MethodPost, "/api/v1/subscription/sync", token(t, "u_1", ""), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u_1", rc.actorID)
	require.Equal(t, "u_1", rc.userID)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, true, got["success"])
	require.Equal(t, true, got["isPremium"])
	require.Equal(t, float64(3), got["daysUntilRenewal"])
	require.Equal(t, "sub_1", got["subscriptionId"])
	require.Equal(t, false, got["cached"])
}

func TestApiSubscriptionSync_AlreadyInProgress(t *testing.T) {
	rc := &stubReconciler{err: reconcile.ErrAlreadyInProgress}
	r := newTestEngine(testConfig(), &stubWebhook{}, rc, &stubLister{})

	w := do(t, r, http.MethodPost, "/api/v1/subscription/sync", token(t, "u_1", ""), nil, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.JSONEq(t, `{"success":false,"alreadyInProgress":true}`, w.Body.String())
}

func TestApiSubscriptionSync_RequiresBearer(t *testing.T) {
	r := newTestEngine(testConfig(), &stubWebhook{}, &stubReconciler{}, &stubLister{})

	w := do(t, r, http.MethodPost, "/api/v1/subscription/sync", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := mw.Token("other_secret", "u_1", "")
	require.NoError(t, err)
	w = do(t, r, http.MethodPost, "/api/v1/subscription/sync", forged, nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApiSubscriptionCancel(t *testing.T) {
	rc := &stubReconciler{err: reconcile.ErrNoSubscription}
	r := newTestEngine(testConfig(), &stubWebhook{}, rc, &stubLister{})

	w := do(t, r, http.MethodPost, "/api/v1/subscription/cancel", token(t, "u_9", ""), nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "u_9", rc.userID)
}

func TestApiAdminSync(t *testing.T) {
	rc := &stubReconciler{res: &reconcile.SyncResult{Success: true, SyncedAt: time.Now()}}
	r := newTestEngine(testConfig(), &stubWebhook{}, rc, &stubLister{})
	body := []byte(`{"user_id":"u_1"}`)

	w := do(t, r, http.MethodPost, "/api/v1/admin/sync", token(t, "u_2", ""), body, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/admin/sync", token(t, "op_1", "operator"), body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "op_1", rc.actorID)
	require.Equal(t, "u_1", rc.userID)

	w = do(t, r, http.MethodPost, "/api/v1/admin/sync", token(t, "op_1", "operator"), []byte(`{}`), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiAdminRetryItems(t *testing.T) {
	lister := &stubLister{res: &retry.ScanResponse{Items: []*models.RetryQueueItem{{ID: "r_1", EventID: "evt_1"}}, Total: 1}}
	r := newTestEngine(testConfig(), &stubWebhook{}, &stubReconciler{}, lister)
	body := []byte(`{"filters":[{"field":"unresolved","operator":"eq","values":[true]}],"size":10}`)

	w := do(t, r, http.MethodPost, "/api/v1/admin/retry_items", token(t, "op_1", "operator"), body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"evt_1"`)
	require.Len(t, lister.req.Filters, 1)
	require.Equal(t, "unresolved", lister.req.Filters[0].Field)
	require.Equal(t, 10, lister.req.Size)

	lister.err = apperr.NewValidation("retry_filter", "payload")
	w = do(t, r, http.MethodPost, "/api/v1/admin/retry_items", token(t, "op_1", "operator"), body, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignatureHeaderNames(t *testing.T) {
	require.Equal(t, "Paddle-Signature", signature.HeaderName)
	require.Equal(t, "Signature", signature.LegacyHeaderName)
}
