package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	interf "github.com/glkeru/loyalty/ledger/internal/interfaces"
	model "github.com/glkeru/loyalty/ledger/internal/models"
)

// Хранилище в памяти для тестов и локального запуска.
// Повторяет контракт LedgerDB, включая двухфазные транзакции.
type Memory struct {
	mu          sync.Mutex
	customers   map[string]model.Customer
	events      map[string]model.PointEvent
	redemptions map[string]model.RedemptionRecord
	anomalies   []model.AnomalyRecord
	counters    map[string]int64
	restaurants map[string]model.Restaurant
}

func NewMemory() *Memory {
	return &Memory{
		customers:   make(map[string]model.Customer),
		events:      make(map[string]model.PointEvent),
		redemptions: make(map[string]model.RedemptionRecord),
		counters:    make(map[string]int64),
		restaurants: make(map[string]model.Restaurant),
	}
}

// Транзакции сериализуются общим мьютексом,
// записи применяются только после успешного завершения fn
func (m *Memory) RunTxn(ctx context.Context, fn func(ctx context.Context, tx interf.LedgerTxn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTxn{store: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, write := range tx.writes {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) GetCustomer(ctx context.Context, key model.CustomerKey) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCustomer(key)
}

func (m *Memory) getCustomer(key model.CustomerKey) (*model.Customer, error) {
	cust, ok := m.customers[key.DocID()]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", key.DocID(), model.ErrNotFound)
	}
	return &cust, nil
}

func (m *Memory) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rest, ok := m.restaurants[id]
	if !ok {
		return nil, fmt.Errorf("restaurant %s: %w", id, model.ErrNotFound)
	}
	return &rest, nil
}

func (m *Memory) SumOpenEvents(ctx context.Context, key model.CustomerKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, e := range m.events {
		if e.Key() == key && e.Open() {
			total += e.Remaining
		}
	}
	return total, nil
}

func (m *Memory) ListDueEvents(ctx context.Context, due time.Time, after time.Time, limit int64) ([]model.PointEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []model.PointEvent
	for _, e := range m.events {
		if !e.Open() || e.ExpiresAt.After(due) {
			continue
		}
		if !after.IsZero() && e.ExpiresAt.Before(after) {
			continue
		}
		events = append(events, e)
	}
	sortByExpiry(events)
	if int64(len(events)) > limit {
		events = events[:limit]
	}
	return events, nil
}

// хелперы для тестов

func (m *Memory) SeedRestaurant(rest model.Restaurant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restaurants[rest.ID] = rest
}

func (m *Memory) SeedCustomer(cust model.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[cust.ID] = cust
}

func (m *Memory) SeedEvent(event model.PointEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = event
}

func (m *Memory) Event(id string) (model.PointEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	return event, ok
}

func (m *Memory) Redemption(id string) (model.RedemptionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.redemptions[id]
	return rec, ok
}

func (m *Memory) Anomalies() []model.AnomalyRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AnomalyRecord(nil), m.anomalies...)
}

func sortByExpiry(events []model.PointEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].ExpiresAt.Equal(events[j].ExpiresAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].ExpiresAt.Before(events[j].ExpiresAt)
	})
}

type memoryTxn struct {
	store  *Memory
	writes []func() error
}

func (t *memoryTxn) staged() bool {
	return len(t.writes) > 0
}

func (t *memoryTxn) GetCustomer(ctx context.Context, key model.CustomerKey) (*model.Customer, error) {
	if t.staged() {
		return nil, model.ErrReadAfterWrite
	}
	return t.store.getCustomer(key)
}

func (t *memoryTxn) GetPointEvent(ctx context.Context, id string) (*model.PointEvent, error) {
	if t.staged() {
		return nil, model.ErrReadAfterWrite
	}
	event, ok := t.store.events[id]
	if !ok {
		return nil, fmt.Errorf("point event %s: %w", id, model.ErrNotFound)
	}
	return &event, nil
}

func (t *memoryTxn) GetPointEvents(ctx context.Context, ids []string) ([]model.PointEvent, error) {
	if t.staged() {
		return nil, model.ErrReadAfterWrite
	}
	var events []model.PointEvent
	for _, id := range ids {
		if event, ok := t.store.events[id]; ok {
			events = append(events, event)
		}
	}
	return events, nil
}

func (t *memoryTxn) GetCounter(ctx context.Context, name string) (int64, error) {
	if t.staged() {
		return 0, model.ErrReadAfterWrite
	}
	count, ok := t.store.counters[name]
	if !ok {
		return 0, fmt.Errorf("counter %s: %w", name, model.ErrNotFound)
	}
	return count, nil
}

func (t *memoryTxn) ListOpenEvents(ctx context.Context, key model.CustomerKey, limit int64) ([]model.PointEvent, error) {
	if t.staged() {
		return nil, model.ErrReadAfterWrite
	}
	var events []model.PointEvent
	for _, e := range t.store.events {
		if e.Key() == key && e.Open() {
			events = append(events, e)
		}
	}
	sortByExpiry(events)
	if int64(len(events)) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (t *memoryTxn) CreatePointEvent(event model.PointEvent) error {
	t.writes = append(t.writes, func() error {
		if _, ok := t.store.events[event.ID]; ok {
			return fmt.Errorf("point event %s already exists", event.ID)
		}
		t.store.events[event.ID] = event
		return nil
	})
	return nil
}

func (t *memoryTxn) UpdatePointEvent(id string, upd model.PointEventUpdate) error {
	t.writes = append(t.writes, func() error {
		event, ok := t.store.events[id]
		if !ok {
			return fmt.Errorf("point event %s: %w", id, model.ErrNotFound)
		}
		event.Remaining = upd.Remaining
		event.Status = upd.Status
		if upd.RedeemedAt != nil {
			event.RedeemedAt = upd.RedeemedAt
		}
		if upd.ExpiredAt != nil {
			event.ExpiredAt = upd.ExpiredAt
		}
		t.store.events[id] = event
		return nil
	})
	return nil
}

func (t *memoryTxn) CreateRedemption(rec model.RedemptionRecord) error {
	t.writes = append(t.writes, func() error {
		t.store.redemptions[rec.ID] = rec
		return nil
	})
	return nil
}

func (t *memoryTxn) CreateAnomaly(rec model.AnomalyRecord) error {
	t.writes = append(t.writes, func() error {
		t.store.anomalies = append(t.store.anomalies, rec)
		return nil
	})
	return nil
}

func (t *memoryTxn) SetCounter(name string, count int64) error {
	t.writes = append(t.writes, func() error {
		t.store.counters[name] = count
		return nil
	})
	return nil
}

func (t *memoryTxn) ApplyCustomer(key model.CustomerKey, upd model.CustomerUpdate) error {
	t.writes = append(t.writes, func() error {
		cust, ok := t.store.customers[key.DocID()]
		if !ok {
			cust = model.Customer{
				ID:           key.DocID(),
				Phone:        key.Phone,
				RestaurantID: key.RestaurantID,
				RegisteredAt: time.Now().UTC(),
			}
		}
		cust.PointsBalance += upd.IncBalance
		cust.TotalPointsEarned += upd.IncEarned
		cust.TotalPointsRedeemed += upd.IncRedeemed
		cust.TotalVisits += upd.IncVisits
		if upd.SetLastVisit != nil {
			cust.LastVisit = *upd.SetLastVisit
		}
		if upd.SetLastRedeemedAt != nil {
			cust.LastRedeemedAt = upd.SetLastRedeemedAt
		}
		if upd.SetName != "" {
			cust.Name = upd.SetName
		}
		t.store.customers[key.DocID()] = cust
		return nil
	})
	return nil
}
