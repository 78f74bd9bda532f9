package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	model "github.com/glkeru/loyalty/ledger/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Двухфазная транзакция: чтения идут сразу в сессии,
// записи копятся и применяются при коммите.
// Чтение после первой отложенной записи - ошибка программирования.
type ledgerTxn struct {
	db     *LedgerDB
	sc     mongo.SessionContext
	writes []func(mongo.SessionContext) error
}

func (t *ledgerTxn) staged() bool {
	return len(t.writes) > 0
}

func (t *ledgerTxn) flush() error {
	for _, write := range t.writes {
		if err := write(t.sc); err != nil {
			return err
		}
	}
	return nil
}

// чтения

func (t *ledgerTxn) GetCustomer(ctx context.Context, key model.CustomerKey) (*model.Customer, error) {
	if t.staged() {
		return nil, model.ErrReadAfterWrite
	}
	return t.db.getCustomer(t.sc, key)
}

func (t *ledgerTxn) GetPointEvent(ctx context.Context, id string) (*model.PointEvent, error) {
	if t.staged() {
		return nil, model.ErrReadAfterWrite
	}
	var event model.PointEvent
	err := t.db.events.FindOne(t.sc, bson.M{"_id": id}).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("point event %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (t *ledgerTxn) GetPointEvents(ctx context.Context, ids []string) ([]model.PointEvent, error) {
	if t.staged() {
		return nil, model.ErrReadAfterWrite
	}
	cursor, err := t.db.events.Find(t.sc, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return decodeEvents(t.sc, cursor)
}

func (t *ledgerTxn) GetCounter(ctx context.Context, name string) (int64, error) {
	if t.staged() {
		return 0, model.ErrReadAfterWrite
	}
	var counter model.Counter
	err := t.db.counters.FindOne(t.sc, bson.M{"_id": name}).Decode(&counter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("counter %s: %w", name, model.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return counter.Count, nil
}

func (t *ledgerTxn) ListOpenEvents(ctx context.Context, key model.CustomerKey, limit int64) ([]model.PointEvent, error) {
	if t.staged() {
		return nil, model.ErrReadAfterWrite
	}
	filter := bson.M{
		"customer_phone": key.Phone,
		"restaurant_id":  key.RestaurantID,
		"status":         bson.M{"$in": []string{model.EventActive, model.EventPartial}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "expires_at", Value: 1}}).
		SetLimit(limit)
	cursor, err := t.db.events.Find(t.sc, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeEvents(t.sc, cursor)
}

// отложенные записи

func (t *ledgerTxn) CreatePointEvent(event model.PointEvent) error {
	t.writes = append(t.writes, func(sc mongo.SessionContext) error {
		_, err := t.db.events.InsertOne(sc, event)
		return err
	})
	return nil
}

func (t *ledgerTxn) UpdatePointEvent(id string, upd model.PointEventUpdate) error {
	t.writes = append(t.writes, func(sc mongo.SessionContext) error {
		set := bson.M{
			"remaining": upd.Remaining,
			"status":    upd.Status,
		}
		if upd.RedeemedAt != nil {
			set["redeemed_at"] = *upd.RedeemedAt
		}
		if upd.ExpiredAt != nil {
			set["expired_at"] = *upd.ExpiredAt
		}
		_, err := t.db.events.UpdateOne(sc, bson.M{"_id": id}, bson.M{"$set": set})
		return err
	})
	return nil
}

func (t *ledgerTxn) CreateRedemption(rec model.RedemptionRecord) error {
	t.writes = append(t.writes, func(sc mongo.SessionContext) error {
		_, err := t.db.redemptions.InsertOne(sc, rec)
		return err
	})
	return nil
}

func (t *ledgerTxn) CreateAnomaly(rec model.AnomalyRecord) error {
	t.writes = append(t.writes, func(sc mongo.SessionContext) error {
		_, err := t.db.anomalies.InsertOne(sc, rec)
		return err
	})
	return nil
}

func (t *ledgerTxn) SetCounter(name string, count int64) error {
	t.writes = append(t.writes, func(sc mongo.SessionContext) error {
		_, err := t.db.counters.UpdateOne(sc,
			bson.M{"_id": name},
			bson.M{"$set": bson.M{"count": count}},
			options.Update().SetUpsert(true),
		)
		return err
	})
	return nil
}

func (t *ledgerTxn) ApplyCustomer(key model.CustomerKey, upd model.CustomerUpdate) error {
	t.writes = append(t.writes, func(sc mongo.SessionContext) error {
		inc := bson.M{}
		if upd.IncBalance != 0 {
			inc["points_balance"] = upd.IncBalance
		}
		if upd.IncEarned != 0 {
			inc["total_points_earned"] = upd.IncEarned
		}
		if upd.IncRedeemed != 0 {
			inc["total_points_redeemed"] = upd.IncRedeemed
		}
		if upd.IncVisits != 0 {
			inc["total_visits"] = upd.IncVisits
		}
		set := bson.M{}
		if upd.SetLastVisit != nil {
			set["last_visit"] = *upd.SetLastVisit
		}
		if upd.SetLastRedeemedAt != nil {
			set["last_redeemed_at"] = *upd.SetLastRedeemedAt
		}
		if upd.SetName != "" {
			set["name"] = upd.SetName
		}
		update := bson.M{
			"$setOnInsert": bson.M{
				"phone_number":  key.Phone,
				"restaurant_id": key.RestaurantID,
				"registered_at": time.Now().UTC(),
			},
		}
		if len(inc) > 0 {
			update["$inc"] = inc
		}
		if len(set) > 0 {
			update["$set"] = set
		}
		_, err := t.db.customers.UpdateOne(sc,
			bson.M{"_id": key.DocID()},
			update,
			options.Update().SetUpsert(true),
		)
		return err
	})
	return nil
}
