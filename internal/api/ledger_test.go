package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	db "github.com/glkeru/loyalty/ledger/internal/db"
	model "github.com/glkeru/loyalty/ledger/internal/models"
	service "github.com/glkeru/loyalty/ledger/internal/services"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	to   []string
	text []string
}

func (f *fakeNotifier) SendText(ctx context.Context, phone string, text string) error {
	f.to = append(f.to, phone)
	f.text = append(f.text, text)
	return nil
}

func newTestHandler(t *testing.T) (*LedgerHandler, *db.Memory, *fakeNotifier) {
	t.Helper()
	store := db.NewMemory()
	store.SeedRestaurant(model.Restaurant{ID: "rest_001", Name: "Test Restaurant", ExpiryDays: 90})
	serv := service.NewLedgerService(zap.NewNop(), store, nil)
	notify := &fakeNotifier{}
	return NewHandler(serv, notify, zap.NewNop(), "secret-token", "rest_001"), store, notify
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEarnRedeemBalanceFlow(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/earn",
		`{"transaction_id":"tx1","phone":"+7 900 123-45-67","restaurant_id":"rest_001","bill_amount":1000,"points":100,"name":"Alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	earn := service.EarnResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &earn))
	require.Equal(t, "pe_tx1", earn.PointEventID)

	rec = doJSON(t, handler, http.MethodPost, "/redeem",
		`{"phone":"79001234567","restaurant_id":"rest_001","points":60,"reward_description":"free coffee"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	redeem := service.RedeemResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redeem))
	require.Equal(t, "R0001", redeem.RedemptionID)
	require.Equal(t, int64(40), redeem.NewBalance)

	rec = doJSON(t, handler, http.MethodGet, "/balance/79001234567?recompute=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	balance := service.BalanceResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	require.True(t, balance.Found)
	require.Equal(t, int64(40), balance.Customer.PointsBalance)
	require.NotNil(t, balance.BalanceMatch)
	require.True(t, *balance.BalanceMatch)
}

func TestRedeemErrorMapping(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	// клиента нет
	rec := doJSON(t, handler, http.MethodPost, "/redeem",
		`{"phone":"79001234567","restaurant_id":"rest_001","points":10}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/earn",
		`{"transaction_id":"tx1","phone":"79001234567","restaurant_id":"rest_001","bill_amount":100,"points":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// недостаточно баллов
	rec = doJSON(t, handler, http.MethodPost, "/redeem",
		`{"phone":"79001234567","restaurant_id":"rest_001","points":50}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	// повтор транзакции
	rec = doJSON(t, handler, http.MethodPost, "/earn",
		`{"transaction_id":"tx1","phone":"79001234567","restaurant_id":"rest_001","bill_amount":100,"points":10}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	// валидация
	rec = doJSON(t, handler, http.MethodPost, "/earn",
		`{"phone":"79001234567","restaurant_id":"rest_001","points":10}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/earn", `{bad json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExpireEndpoint(t *testing.T) {
	handler, store, _ := newTestHandler(t)

	key := model.NewCustomerKey("79001234567", "rest_001")
	store.SeedCustomer(model.Customer{
		ID: key.DocID(), Phone: key.Phone, RestaurantID: "rest_001",
		PointsBalance: 30,
	})
	store.SeedEvent(model.PointEvent{
		ID: "pe_due", Phone: key.Phone, RestaurantID: "rest_001",
		Points: 30, Remaining: 30, Status: model.EventActive,
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	})

	rec := doJSON(t, handler, http.MethodPost, "/expire", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := ExpireResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.ExpiredCount)
}

func TestVerifyWebhook(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "12345", rec.Body.String())

	rec = doJSON(t, handler, http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookBalanceMessage(t *testing.T) {
	handler, store, notify := newTestHandler(t)

	key := model.NewCustomerKey("79001234567", "rest_001")
	store.SeedCustomer(model.Customer{
		ID: key.DocID(), Phone: key.Phone, RestaurantID: "rest_001",
		PointsBalance: 150,
	})

	payload := `{"entry":[{"changes":[{"value":{
		"metadata":{"phone_number_id":"111"},
		"messages":[{"from":"79001234567","text":{"body":" Balance "}}]}}]}]}`

	rec := doJSON(t, handler, http.MethodPost, "/webhook", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	require.Len(t, notify.text, 1)
	require.Equal(t, "79001234567", notify.to[0])
	require.Contains(t, notify.text[0], "150 points")
}

func TestWebhookOtherMessage(t *testing.T) {
	handler, _, notify := newTestHandler(t)

	payload := `{"entry":[{"changes":[{"value":{
		"messages":[{"from":"79001234567","text":{"body":"hello"}}]}}]}]}`

	rec := doJSON(t, handler, http.MethodPost, "/webhook", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notify.text, 1)
	require.Contains(t, notify.text[0], "BALANCE")
}
