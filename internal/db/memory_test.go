package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	interf "github.com/glkeru/loyalty/ledger/internal/interfaces"
	model "github.com/glkeru/loyalty/ledger/internal/models"
	"github.com/stretchr/testify/require"
)

func TestTxnReadAfterWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	err := store.RunTxn(ctx, func(ctx context.Context, tx interf.LedgerTxn) error {
		if err := tx.SetCounter(model.RedemptionCounter, 1); err != nil {
			return err
		}
		// чтение после отложенной записи запрещено
		_, err := tx.GetCounter(ctx, model.RedemptionCounter)
		return err
	})
	require.ErrorIs(t, err, model.ErrReadAfterWrite)
}

func TestTxnAbortDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	boom := errors.New("boom")
	err := store.RunTxn(ctx, func(ctx context.Context, tx interf.LedgerTxn) error {
		if err := tx.CreatePointEvent(model.PointEvent{ID: "pe_tx1", Status: model.EventActive}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := store.Event("pe_tx1")
	require.False(t, ok)
}

func TestTxnCommitAppliesWritesInOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	now := time.Now().UTC()
	err := store.RunTxn(ctx, func(ctx context.Context, tx interf.LedgerTxn) error {
		if err := tx.CreatePointEvent(model.PointEvent{
			ID: "pe_tx1", Points: 100, Remaining: 100, Status: model.EventActive,
			ExpiresAt: now.Add(time.Hour),
		}); err != nil {
			return err
		}
		return tx.UpdatePointEvent("pe_tx1", model.PointEventUpdate{
			Remaining: 40,
			Status:    model.EventPartial,
		})
	})
	require.NoError(t, err)

	event, ok := store.Event("pe_tx1")
	require.True(t, ok)
	require.Equal(t, int64(40), event.Remaining)
	require.Equal(t, model.EventPartial, event.Status)
}

func TestListDueEventsPaging(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	now := time.Now().UTC()
	for i, id := range []string{"pe_a", "pe_b", "pe_c"} {
		store.SeedEvent(model.PointEvent{
			ID: id, Phone: "79001234567", RestaurantID: "rest_001",
			Points: 10, Remaining: 10, Status: model.EventActive,
			ExpiresAt: now.Add(time.Duration(i-3) * time.Hour),
		})
	}
	// закрытые и будущие события не попадают
	store.SeedEvent(model.PointEvent{
		ID: "pe_closed", Status: model.EventRedeemed, ExpiresAt: now.Add(-time.Hour),
	})
	store.SeedEvent(model.PointEvent{
		ID: "pe_future", Status: model.EventActive, ExpiresAt: now.Add(time.Hour),
	})

	page, err := store.ListDueEvents(ctx, now, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "pe_a", page[0].ID)
	require.Equal(t, "pe_b", page[1].ID)

	// курсор включительный, обработанные события уходят из выборки по статусу
	page, err = store.ListDueEvents(ctx, now, page[1].ExpiresAt, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "pe_b", page[0].ID)
	require.Equal(t, "pe_c", page[1].ID)
}

func TestSumOpenEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	key := model.NewCustomerKey("79001234567", "rest_001")
	store.SeedEvent(model.PointEvent{
		ID: "pe_a", Phone: key.Phone, RestaurantID: "rest_001",
		Remaining: 30, Status: model.EventActive,
	})
	store.SeedEvent(model.PointEvent{
		ID: "pe_b", Phone: key.Phone, RestaurantID: "rest_001",
		Remaining: 20, Status: model.EventPartial,
	})
	store.SeedEvent(model.PointEvent{
		ID: "pe_c", Phone: key.Phone, RestaurantID: "rest_001",
		Remaining: 0, Status: model.EventExpired,
	})
	store.SeedEvent(model.PointEvent{
		ID: "pe_other", Phone: key.Phone, RestaurantID: "rest_002",
		Remaining: 99, Status: model.EventActive,
	})

	sum, err := store.SumOpenEvents(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(50), sum)
}
