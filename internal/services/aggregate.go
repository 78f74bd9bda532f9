package ledger

import (
	"time"

	model "github.com/glkeru/loyalty/ledger/internal/models"
)

// Изменения агрегата клиента, применяются в транзакции операции

func earnAggregate(points int64, now time.Time) model.CustomerUpdate {
	visit := now
	return model.CustomerUpdate{
		IncBalance:   points,
		IncEarned:    points,
		IncVisits:    1,
		SetLastVisit: &visit,
	}
}

func redeemAggregate(points int64, now time.Time) model.CustomerUpdate {
	redeemed := now
	return model.CustomerUpdate{
		IncBalance:        -points,
		IncRedeemed:       points,
		SetLastRedeemedAt: &redeemed,
	}
}

func expiryAggregate(delta int64) model.CustomerUpdate {
	return model.CustomerUpdate{IncBalance: delta}
}
