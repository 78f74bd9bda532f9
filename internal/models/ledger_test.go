package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+7 900 123-45-67", "79001234567"},
		{"79001234567", "79001234567"},
		{"+1-555-000-1111", "15550001111"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CleanPhone(tt.in))
	}
}

func TestCustomerKeyDocID(t *testing.T) {
	key := NewCustomerKey("+7 900 123-45-67", "rest_001")
	require.Equal(t, "79001234567", key.Phone)
	require.Equal(t, "79001234567_rest_001", key.DocID())
}

func TestPointEventID(t *testing.T) {
	require.Equal(t, "pe_tx_123", PointEventID("tx_123"))
}

func TestPointEventOpen(t *testing.T) {
	event := PointEvent{Status: EventActive, ExpiresAt: time.Now().Add(time.Hour)}
	require.True(t, event.Open())

	event.Status = EventPartial
	require.True(t, event.Open())

	event.Status = EventRedeemed
	require.False(t, event.Open())

	event.Status = EventExpired
	require.False(t, event.Open())
}
