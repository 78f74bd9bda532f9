package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	interf "github.com/glkeru/loyalty/ledger/internal/interfaces"
	model "github.com/glkeru/loyalty/ledger/internal/models"
	"go.uber.org/zap"
)

const (
	// окно событий на одно списание
	RedeemEventWindow = 200
	// размер страницы сгорания
	ExpiryPageSize = 200
)

type LedgerService struct {
	logger *zap.Logger
	db     interf.LedgerStorage
	cache  interf.CacheStorage
}

func NewLedgerService(logger *zap.Logger, db interf.LedgerStorage, cache interf.CacheStorage) *LedgerService {
	return &LedgerService{logger, db, cache}
}

type EarnResult struct {
	PointEventID string    `json:"point_event_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Начисление баллов по транзакции кассы
func (s *LedgerService) Earn(ctx context.Context, transactionID string, phone string, restaurantID string, billAmount float64, points int64, name string) (EarnResult, error) {
	if transactionID == "" || phone == "" || restaurantID == "" {
		return EarnResult{}, fmt.Errorf("transaction_id, phone and restaurant_id are required: %w", model.ErrValidation)
	}
	if points <= 0 {
		return EarnResult{}, fmt.Errorf("points must be positive: %w", model.ErrValidation)
	}
	key := model.NewCustomerKey(phone, restaurantID)

	// срок сгорания из настроек ресторана
	days := model.DefaultExpiryDays
	rest, err := s.db.GetRestaurant(ctx, restaurantID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return EarnResult{}, err
	}
	if rest != nil && rest.ExpiryDays > 0 {
		days = rest.ExpiryDays
	}

	now := time.Now().UTC()
	event := model.PointEvent{
		ID:            model.PointEventID(transactionID),
		TransactionID: transactionID,
		Phone:         key.Phone,
		RestaurantID:  key.RestaurantID,
		Points:        points,
		Remaining:     points,
		BillAmount:    billAmount,
		Status:        model.EventActive,
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Duration(days) * 24 * time.Hour),
	}

	err = s.db.RunTxn(ctx, func(ctx context.Context, tx interf.LedgerTxn) error {
		// защита от повторного начисления по той же транзакции
		existing, err := tx.GetPointEvent(ctx, event.ID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
		if existing != nil {
			return fmt.Errorf("transaction %s: %w", transactionID, model.ErrDuplicateTransaction)
		}
		cust, err := tx.GetCustomer(ctx, key)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}

		if err := tx.CreatePointEvent(event); err != nil {
			return err
		}
		upd := earnAggregate(points, now)
		// имя пишется один раз
		if name != "" && (cust == nil || cust.Name == "") {
			upd.SetName = name
		}
		return tx.ApplyCustomer(key, upd)
	})
	if err != nil {
		return EarnResult{}, err
	}
	s.invalidate(ctx, key)
	return EarnResult{event.ID, event.ExpiresAt}, nil
}

type RedeemResult struct {
	RedemptionID string    `json:"redemption_id"`
	NewBalance   int64     `json:"new_balance"`
	CreatedAt    time.Time `json:"created_at"`
}

// Списание баллов: FIFO по сроку сгорания, одна транзакция,
// все чтения до первой записи
func (s *LedgerService) Redeem(ctx context.Context, phone string, restaurantID string, points int64, reward string) (RedeemResult, error) {
	if phone == "" || restaurantID == "" {
		return RedeemResult{}, fmt.Errorf("phone and restaurant_id are required: %w", model.ErrValidation)
	}
	if points <= 0 {
		return RedeemResult{}, fmt.Errorf("points must be positive: %w", model.ErrValidation)
	}
	key := model.NewCustomerKey(phone, restaurantID)
	now := time.Now().UTC()

	var result RedeemResult
	err := s.db.RunTxn(ctx, func(ctx context.Context, tx interf.LedgerTxn) error {
		// фаза чтений
		cust, err := tx.GetCustomer(ctx, key)
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("%s: %w", key.DocID(), model.ErrCustomerNotFound)
		}
		if err != nil {
			return err
		}
		if points > cust.PointsBalance {
			return fmt.Errorf("balance %d, requested %d: %w", cust.PointsBalance, points, model.ErrInsufficientBalance)
		}
		seq, err := tx.GetCounter(ctx, model.RedemptionCounter)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
		events, err := tx.ListOpenEvents(ctx, key, RedeemEventWindow)
		if err != nil {
			return err
		}

		redemptionID := NextRedemptionID(seq)
		consumed, updates, rest := consumeFIFO(events, points, now)
		if rest > 0 {
			// баланс клиента считаем источником истины,
			// расхождение фиксируем для разбора
			consumed = append(consumed, model.ConsumedEvent{PointEventID: model.SyntheticBalanceCorrection, Used: rest})
			s.logger.Warn("events do not cover balance",
				zap.String("customer", key.DocID()),
				zap.String("redemption", redemptionID),
				zap.Int64("correction", rest),
			)
			if err := tx.CreateAnomaly(model.AnomalyRecord{
				ID:           uuid.NewString(),
				Type:         model.SyntheticBalanceCorrection,
				CustomerID:   key.DocID(),
				RedemptionID: redemptionID,
				Amount:       rest,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
		}

		// фаза записей
		if err := tx.SetCounter(model.RedemptionCounter, seq+1); err != nil {
			return err
		}
		for _, u := range updates {
			if err := tx.UpdatePointEvent(u.id, u.upd); err != nil {
				return err
			}
		}
		if err := tx.CreateRedemption(model.RedemptionRecord{
			ID:                redemptionID,
			RedemptionID:      redemptionID,
			Phone:             key.Phone,
			RestaurantID:      key.RestaurantID,
			PointsRedeemed:    points,
			RewardDescription: reward,
			ConsumedEvents:    consumed,
			Status:            "completed",
			CreatedAt:         now,
		}); err != nil {
			return err
		}
		if err := tx.ApplyCustomer(key, redeemAggregate(points, now)); err != nil {
			return err
		}
		result = RedeemResult{redemptionID, cust.PointsBalance - points, now}
		return nil
	})
	if err != nil {
		return RedeemResult{}, err
	}
	s.invalidate(ctx, key)
	return result, nil
}

type eventUpdate struct {
	id  string
	upd model.PointEventUpdate
}

// жадное распределение списания по событиям,
// события приходят отсортированными по сроку сгорания
func consumeFIFO(events []model.PointEvent, points int64, now time.Time) (consumed []model.ConsumedEvent, updates []eventUpdate, rest int64) {
	rest = points
	for _, e := range events {
		if rest == 0 {
			break
		}
		if e.Remaining <= 0 {
			continue
		}
		use := min(e.Remaining, rest)
		left := e.Remaining - use
		status := model.EventPartial
		if left == 0 {
			status = model.EventRedeemed
		}
		redeemedAt := now
		updates = append(updates, eventUpdate{e.ID, model.PointEventUpdate{
			Remaining:  left,
			Status:     status,
			RedeemedAt: &redeemedAt,
		}})
		consumed = append(consumed, model.ConsumedEvent{PointEventID: e.ID, Used: use})
		rest -= use
	}
	return consumed, updates, rest
}

type BalanceResult struct {
	Found             bool            `json:"found"`
	Customer          *model.Customer `json:"customer,omitempty"`
	RecomputedBalance *int64          `json:"recomputed_balance,omitempty"`
	BalanceMatch      *bool           `json:"balance_match,omitempty"`
}

// Сверка баланса: кэшированное значение и, по запросу,
// пересчет по открытым событиям. Только чтение.
func (s *LedgerService) CheckBalance(ctx context.Context, phone string, restaurantID string, recompute bool) (BalanceResult, error) {
	if phone == "" || restaurantID == "" {
		return BalanceResult{}, fmt.Errorf("phone and restaurant_id are required: %w", model.ErrValidation)
	}
	key := model.NewCustomerKey(phone, restaurantID)
	cust, err := s.db.GetCustomer(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return BalanceResult{}, nil
	}
	if err != nil {
		return BalanceResult{}, err
	}
	result := BalanceResult{Found: true, Customer: cust}
	if recompute {
		sum, err := s.db.SumOpenEvents(ctx, key)
		if err != nil {
			return BalanceResult{}, err
		}
		match := sum == cust.PointsBalance
		result.RecomputedBalance = &sum
		result.BalanceMatch = &match
	}
	return result, nil
}

// Баланс для быстрых запросов (webhook)
func (s *LedgerService) Balance(ctx context.Context, phone string, restaurantID string) (points int64, err error) {
	key := model.NewCustomerKey(phone, restaurantID)
	// cache
	if s.cache != nil {
		points, err = s.cache.GetBalance(ctx, key.DocID())
		if err == nil {
			return points, nil
		}
	}
	cust, err := s.db.GetCustomer(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return 0, fmt.Errorf("%s: %w", key.DocID(), model.ErrCustomerNotFound)
	}
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		_ = s.cache.SetBalance(ctx, key.DocID(), cust.PointsBalance)
	}
	return cust.PointsBalance, nil
}

// сброс кэша баланса
func (s *LedgerService) invalidate(ctx context.Context, key model.CustomerKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBalance(ctx, key.DocID()); err != nil {
		s.logger.Error("cache invalidate", zap.String("customer", key.DocID()), zap.Error(err))
	}
}

func (s *LedgerService) Log(err error) {
	s.logger.Error(err.Error())
}
