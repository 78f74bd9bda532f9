package ledger

import (
	"context"
	"time"

	model "github.com/glkeru/loyalty/ledger/internal/models"
)

//go:generate mockgen -destination=./../services/mock_ledger_test.go -package=ledger . CacheStorage,Notifier

// Транзакция хранилища: сначала все чтения, потом все записи.
// Чтение после первой отложенной записи возвращает ErrReadAfterWrite.
type LedgerTxn interface {
	// чтения
	GetCustomer(ctx context.Context, key model.CustomerKey) (*model.Customer, error)
	GetPointEvent(ctx context.Context, id string) (*model.PointEvent, error)
	GetPointEvents(ctx context.Context, ids []string) ([]model.PointEvent, error)
	GetCounter(ctx context.Context, name string) (int64, error)
	ListOpenEvents(ctx context.Context, key model.CustomerKey, limit int64) ([]model.PointEvent, error)

	// отложенные записи, применяются при коммите
	CreatePointEvent(event model.PointEvent) error
	UpdatePointEvent(id string, upd model.PointEventUpdate) error
	CreateRedemption(rec model.RedemptionRecord) error
	CreateAnomaly(rec model.AnomalyRecord) error
	SetCounter(name string, count int64) error
	ApplyCustomer(key model.CustomerKey, upd model.CustomerUpdate) error
}

type LedgerStorage interface {
	RunTxn(ctx context.Context, fn func(ctx context.Context, tx LedgerTxn) error) error
	GetCustomer(ctx context.Context, key model.CustomerKey) (*model.Customer, error)
	GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error)
	// сумма remaining по открытым событиям клиента
	SumOpenEvents(ctx context.Context, key model.CustomerKey) (int64, error)
	// страница просроченных событий, начиная с after включительно
	ListDueEvents(ctx context.Context, due time.Time, after time.Time, limit int64) ([]model.PointEvent, error)
}

type CacheStorage interface {
	GetBalance(ctx context.Context, key string) (points int64, err error)
	SetBalance(ctx context.Context, key string, points int64) (err error)
	InvalidateBalance(ctx context.Context, key string) error
}

// Исходящие уведомления, вызывается только сервисным слоем
type Notifier interface {
	SendText(ctx context.Context, phone string, text string) error
}
