package ledger

import (
	"context"
	"errors"
	"testing"

	db "github.com/glkeru/loyalty/ledger/internal/db"
	model "github.com/glkeru/loyalty/ledger/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func TestBalanceCacheHit(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	cache := NewMockCacheStorage(ctrl)

	store := db.NewMemory()
	serv := NewLedgerService(zap.NewNop(), store, cache)

	// кэш отвечает - в базу не ходим
	cache.EXPECT().GetBalance(gomock.Any(), "79001234567_rest_001").Return(int64(150), nil)

	points, err := serv.Balance(ctx, "+7 900 123-45-67", "rest_001")
	require.NoError(t, err)
	require.Equal(t, int64(150), points)
}

func TestBalanceCacheMiss(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	cache := NewMockCacheStorage(ctrl)

	store := db.NewMemory()
	key := model.NewCustomerKey("79001234567", "rest_001")
	store.SeedCustomer(model.Customer{
		ID: key.DocID(), Phone: key.Phone, RestaurantID: "rest_001",
		PointsBalance: 70,
	})
	serv := NewLedgerService(zap.NewNop(), store, cache)

	cache.EXPECT().GetBalance(gomock.Any(), key.DocID()).Return(int64(0), errors.New("redis: nil"))
	cache.EXPECT().SetBalance(gomock.Any(), key.DocID(), int64(70)).Return(nil)

	points, err := serv.Balance(ctx, "79001234567", "rest_001")
	require.NoError(t, err)
	require.Equal(t, int64(70), points)
}

func TestEarnInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	cache := NewMockCacheStorage(ctrl)

	store := db.NewMemory()
	store.SeedRestaurant(model.Restaurant{ID: "rest_001", ExpiryDays: 90})
	serv := NewLedgerService(zap.NewNop(), store, cache)

	cache.EXPECT().InvalidateBalance(gomock.Any(), "79001234567_rest_001").Return(nil)

	_, err := serv.Earn(ctx, "tx1", "79001234567", "rest_001", 1000, 100, "")
	require.NoError(t, err)
}
