package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSender(t *testing.T, handler http.HandlerFunc) *Sender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sender, err := NewSender("test-token", "111222", zap.NewNop())
	require.NoError(t, err)
	sender.base = srv.URL
	return sender
}

func TestSendText(t *testing.T) {
	var got textPayload
	sender := newTestSender(t, func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/111222/messages", req.URL.Path)
		require.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := sender.SendText(context.Background(), "+7 900 123-45-67", "You have 150 points")
	require.NoError(t, err)
	require.Equal(t, "whatsapp", got.MessagingProduct)
	require.Equal(t, "79001234567", got.To)
	require.Equal(t, "You have 150 points", got.Text.Body)
}

func TestSendTextNoRetryOnClientError(t *testing.T) {
	var calls int
	sender := newTestSender(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	})

	err := sender.SendText(context.Background(), "79001234567", "hi")
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestSendTextRetryOnServerError(t *testing.T) {
	var calls int
	sender := newTestSender(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	err := sender.SendText(context.Background(), "79001234567", "hi")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestNewSenderValidation(t *testing.T) {
	_, err := NewSender("", "111", zap.NewNop())
	require.Error(t, err)
	_, err = NewSender("token", "", zap.NewNop())
	require.Error(t, err)
}
