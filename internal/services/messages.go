package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	model "github.com/glkeru/loyalty/ledger/internal/models"
)

// Транзакция кассы из потока POS
type PosTransaction struct {
	TransactionID string  `json:"transactionId"`
	Phone         string  `json:"phone"`
	RestaurantID  string  `json:"restaurantId"`
	BillAmount    float64 `json:"billAmount"`
	Points        int64   `json:"points"`
	Name          string  `json:"name,omitempty"`
}

func (s *LedgerService) EarnFromMessage(ctx context.Context, msg string) (EarnResult, error) {
	tnx := &PosTransaction{}
	if err := json.Unmarshal([]byte(msg), tnx); err != nil {
		return EarnResult{}, fmt.Errorf("invalid transaction message: %w", model.ErrValidation)
	}
	return s.Earn(ctx, tnx.TransactionID, tnx.Phone, tnx.RestaurantID, tnx.BillAmount, tnx.Points, tnx.Name)
}

// Запрос на списание из очереди
type RedeemMessage struct {
	Phone             string `json:"phone"`
	RestaurantID      string `json:"restaurantId"`
	Points            int64  `json:"points"`
	RewardDescription string `json:"rewardDescription,omitempty"`
}

func (s *LedgerService) RedeemFromMessage(ctx context.Context, msg string) (RedeemResult, error) {
	redeem := &RedeemMessage{}
	if err := json.Unmarshal([]byte(msg), redeem); err != nil {
		return RedeemResult{}, fmt.Errorf("invalid redeem message: %w", model.ErrValidation)
	}
	return s.Redeem(ctx, redeem.Phone, redeem.RestaurantID, redeem.Points, redeem.RewardDescription)
}
