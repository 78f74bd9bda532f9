package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	interf "github.com/glkeru/loyalty/ledger/internal/interfaces"
	model "github.com/glkeru/loyalty/ledger/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

type LedgerDB struct {
	mgo         *mongo.Client
	customers   *mongo.Collection
	events      *mongo.Collection
	redemptions *mongo.Collection
	counters    *mongo.Collection
	restaurants *mongo.Collection
	anomalies   *mongo.Collection
	logger      *zap.Logger
}

func NewLedgerDB(uri string, database string, logger *zap.Logger) (*LedgerDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if uri == "" {
		return nil, fmt.Errorf("env LEDGER_MONGO is not set")
	}
	if database == "" {
		database = "loyaltyDB"
	}

	opts := options.Client().ApplyURI("mongodb://" + uri)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, err
	}
	db := client.Database(database)

	return &LedgerDB{
		mgo:         client,
		customers:   db.Collection("customers"),
		events:      db.Collection("point_events"),
		redemptions: db.Collection("redemptions"),
		counters:    db.Collection("counters"),
		restaurants: db.Collection("restaurants"),
		anomalies:   db.Collection("anomalies"),
		logger:      logger,
	}, nil
}

// Транзакция: snapshot чтения, запись с подтверждением большинством.
// Транзиентные конфликты ретраит драйвер внутри WithTransaction.
func (d *LedgerDB) RunTxn(ctx context.Context, fn func(ctx context.Context, tx interf.LedgerTxn) error) error {
	session, err := d.mgo.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		tx := &ledgerTxn{db: d, sc: sc}
		if err := fn(sc, tx); err != nil {
			return nil, err
		}
		return nil, tx.flush()
	}, opts)
	return err
}

func (d *LedgerDB) GetCustomer(ctx context.Context, key model.CustomerKey) (*model.Customer, error) {
	return d.getCustomer(ctx, key)
}

func (d *LedgerDB) getCustomer(ctx context.Context, key model.CustomerKey) (*model.Customer, error) {
	var cust model.Customer
	err := d.customers.FindOne(ctx, bson.M{"_id": key.DocID()}).Decode(&cust)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("customer %s: %w", key.DocID(), model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cust, nil
}

func (d *LedgerDB) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	var rest model.Restaurant
	err := d.restaurants.FindOne(ctx, bson.M{"_id": id}).Decode(&rest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("restaurant %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rest, nil
}

// сумма remaining по открытым событиям клиента
func (d *LedgerDB) SumOpenEvents(ctx context.Context, key model.CustomerKey) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"customer_phone": key.Phone,
			"restaurant_id":  key.RestaurantID,
			"status":         bson.M{"$in": []string{model.EventActive, model.EventPartial}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$remaining"},
		}}},
	}
	cursor, err := d.events.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var row struct {
		Total int64 `bson:"total"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&row); err != nil {
			return 0, err
		}
	}
	return row.Total, nil
}

// страница просроченных событий по возрастанию срока, after включительно
func (d *LedgerDB) ListDueEvents(ctx context.Context, due time.Time, after time.Time, limit int64) ([]model.PointEvent, error) {
	expires := bson.M{"$lte": due}
	if !after.IsZero() {
		expires["$gte"] = after
	}
	filter := bson.M{
		"status":     bson.M{"$in": []string{model.EventActive, model.EventPartial}},
		"expires_at": expires,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "expires_at", Value: 1}}).
		SetLimit(limit)
	cursor, err := d.events.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeEvents(ctx, cursor)
}

func decodeEvents(ctx context.Context, cursor *mongo.Cursor) ([]model.PointEvent, error) {
	defer cursor.Close(ctx)
	var events []model.PointEvent
	for cursor.Next(ctx) {
		var event model.PointEvent
		if err := cursor.Decode(&event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, cursor.Err()
}
