package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clubsync/internal/alerts"
	"clubsync/internal/mocks"
	"clubsync/internal/modal"
	"clubsync/internal/models"
	"clubsync/internal/realtime"
	"clubsync/internal/store"
	"clubsync/internal/telemetry"
)

var errBoom = errors.New("boom")

type alertFixture struct {
	payments *mocks.PaymentSourceMock
	events   *mocks.EventSourceMock
	arbiter  *modal.Arbiter
	durable  *store.Memory
	router   *gin.Engine
}

func newAlertFixture() *alertFixture {
	f := &alertFixture{
		payments: new(mocks.PaymentSourceMock),
		events:   new(mocks.EventSourceMock),
		durable:  store.NewMemory(),
	}

	policy := alerts.NewDismissalPolicy(store.NewMemory(), 30*time.Minute, nil)
	aggregator := alerts.New(f.payments, f.events, policy, 7, nil)
	f.arbiter = modal.New(time.Millisecond, nil)
	manager := realtime.NewManager(realtime.Options{URL: "ws://unused"})
	audit := telemetry.NewAuditEmitter(nil, "audit.clubsync", "clubsync", "test")

	h := NewAlertHandler(aggregator, f.arbiter, manager, audit, f.durable)
	f.router = gin.New()
	f.router.GET("/alerts", h.ListAlerts)
	f.router.POST("/alerts/refresh", h.RefreshAlerts)
	f.router.POST("/alerts/:alert_id/dismiss", h.DismissAlert)
	f.router.GET("/connection", h.GetConnection)
	f.router.POST("/modals/:kind", h.RequestModal)
	f.router.DELETE("/modals/:kind", h.CloseModal)
	f.router.DELETE("/modals", h.ForceCloseModals)
	return f
}

func (f *alertFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRefreshThenDismissAlert(t *testing.T) {
	f := newAlertFixture()
	f.payments.On("ListPendingPayments", mock.Anything).Return([]models.PendingPayment{
		{ID: "p1", Amount: 500, Balance: 100, DueDate: time.Now().AddDate(0, 0, -1)},
	}, nil).Once()
	f.events.On("ListActiveEvents", mock.Anything).Return(nil, nil).Once()

	w := f.do(http.MethodPost, "/alerts/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "payment_overdue")

	w = f.do(http.MethodPost, "/alerts/payment_overdue:p1/dismiss", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/alerts", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "payment_overdue")
}

func TestDismissUnknownAlertReturnsNotFound(t *testing.T) {
	f := newAlertFixture()
	w := f.do(http.MethodPost, "/alerts/nope/dismiss", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshFailsWhenAllSourcesFail(t *testing.T) {
	f := newAlertFixture()
	f.payments.On("ListPendingPayments", mock.Anything).Return(nil, errBoom).Once()
	f.events.On("ListActiveEvents", mock.Anything).Return(nil, errBoom).Once()

	w := f.do(http.MethodPost, "/alerts/refresh", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetConnectionReportsState(t *testing.T) {
	f := newAlertFixture()
	w := f.do(http.MethodGet, "/connection", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), string(models.ConnDisconnected))
}

func TestRequestModalConflictsWhileBusy(t *testing.T) {
	f := newAlertFixture()

	w := f.do(http.MethodPost, "/modals/poll_vote", `{"event_id":"e1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = f.do(http.MethodPost, "/modals/poll_vote", `{"event_id":"e2"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodDelete, "/modals/poll_vote", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/modals/poll_vote", `{"event_id":"e3"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestRequestModalRespectsDeclinedPrompt(t *testing.T) {
	f := newAlertFixture()
	require.NoError(t, f.durable.Set("prompt_declined:install", []byte("1")))

	w := f.do(http.MethodPost, "/modals/install", "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "previously declined")
}

func TestForceCloseReleasesAllModals(t *testing.T) {
	f := newAlertFixture()
	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/modals/a", "").Code)
	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/modals/b", "").Code)

	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/modals", "").Code)

	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/modals/a", "").Code)
	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/modals/b", "").Code)
}
