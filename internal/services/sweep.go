package ledger

import (
	"context"
	"time"

	interf "github.com/glkeru/loyalty/ledger/internal/interfaces"
	model "github.com/glkeru/loyalty/ledger/internal/models"
	"go.uber.org/zap"
)

// Сгорание просроченных событий постранично.
// Каждая страница - одна атомарная транзакция, запуск идемпотентен:
// уже сгоревшие события отфильтровываются по статусу.
func (s *LedgerService) RunExpirySweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	var after time.Time
	expired := 0
	touched := make(map[model.CustomerKey]struct{})

	for {
		page, err := s.db.ListDueEvents(ctx, now, after, ExpiryPageSize)
		if err != nil {
			return expired, err
		}
		if len(page) == 0 {
			break
		}

		ids := make([]string, len(page))
		for i, e := range page {
			ids[i] = e.ID
		}

		var count int
		err = s.db.RunTxn(ctx, func(ctx context.Context, tx interf.LedgerTxn) error {
			count = 0
			// перечитываем внутри транзакции: статус - защита от повтора
			events, err := tx.GetPointEvents(ctx, ids)
			if err != nil {
				return err
			}
			deltas := make(map[model.CustomerKey]int64)
			for _, e := range events {
				if !e.Open() || e.Remaining <= 0 {
					continue
				}
				expiredAt := now
				if err := tx.UpdatePointEvent(e.ID, model.PointEventUpdate{
					Remaining: 0,
					Status:    model.EventExpired,
					ExpiredAt: &expiredAt,
				}); err != nil {
					return err
				}
				deltas[e.Key()] -= e.Remaining
				count++
			}
			// дельта, не перезапись: безопасно при параллельных списаниях
			for key, d := range deltas {
				if err := tx.ApplyCustomer(key, expiryAggregate(d)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return expired, err
		}
		expired += count
		for _, e := range page {
			touched[e.Key()] = struct{}{}
		}

		if int64(len(page)) < ExpiryPageSize {
			break
		}
		// курсор по последнему сроку сгорания, включительно:
		// обработанные события уходят из фильтра по статусу
		after = page[len(page)-1].ExpiresAt
	}

	for key := range touched {
		s.invalidate(ctx, key)
	}
	s.logger.Info("expiry sweep finished", zap.Int("expired", expired))
	return expired, nil
}
