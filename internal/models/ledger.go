package ledger

import (
	"strings"
	"time"
)

// Статусы события начисления
const (
	EventActive   = "active"
	EventPartial  = "partial"
	EventRedeemed = "redeemed"
	EventExpired  = "expired"
)

// Счетчик номеров списаний
const RedemptionCounter = "redemptions"

// Синтетическая запись потребления: окно событий не покрыло баланс
const SyntheticBalanceCorrection = "synthetic_balance_correction"

const DefaultExpiryDays = 90

// Ключ клиента: телефон + ресторан
type CustomerKey struct {
	Phone        string
	RestaurantID string
}

func NewCustomerKey(phone string, restaurantID string) CustomerKey {
	return CustomerKey{CleanPhone(phone), restaurantID}
}

// ID документа клиента
func (k CustomerKey) DocID() string {
	return k.Phone + "_" + k.RestaurantID
}

// убрать +, пробелы и дефисы из номера
func CleanPhone(phone string) string {
	r := strings.NewReplacer("+", "", " ", "", "-", "")
	return r.Replace(phone)
}

// Клиент - денормализованный агрегат баланса
type Customer struct {
	ID                  string     `bson:"_id" json:"id"`
	Phone               string     `bson:"phone_number" json:"phone_number"`
	RestaurantID        string     `bson:"restaurant_id" json:"restaurant_id"`
	Name                string     `bson:"name,omitempty" json:"name,omitempty"`
	PointsBalance       int64      `bson:"points_balance" json:"points_balance"`
	TotalPointsEarned   int64      `bson:"total_points_earned" json:"total_points_earned"`
	TotalPointsRedeemed int64      `bson:"total_points_redeemed" json:"total_points_redeemed"`
	TotalVisits         int64      `bson:"total_visits" json:"total_visits"`
	RegisteredAt        time.Time  `bson:"registered_at" json:"registered_at"`
	LastVisit           time.Time  `bson:"last_visit" json:"last_visit"`
	LastRedeemedAt      *time.Time `bson:"last_redeemed_at,omitempty" json:"last_redeemed_at,omitempty"`
}

// Событие начисления баллов по одной транзакции
type PointEvent struct {
	ID            string     `bson:"_id" json:"id"`
	TransactionID string     `bson:"transaction_id" json:"transaction_id"`
	Phone         string     `bson:"customer_phone" json:"customer_phone"`
	RestaurantID  string     `bson:"restaurant_id" json:"restaurant_id"`
	Points        int64      `bson:"points" json:"points"`
	Remaining     int64      `bson:"remaining" json:"remaining"`
	BillAmount    float64    `bson:"bill_amount,omitempty" json:"bill_amount,omitempty"`
	Status        string     `bson:"status" json:"status"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	ExpiresAt     time.Time  `bson:"expires_at" json:"expires_at"`
	RedeemedAt    *time.Time `bson:"redeemed_at,omitempty" json:"redeemed_at,omitempty"`
	ExpiredAt     *time.Time `bson:"expired_at,omitempty" json:"expired_at,omitempty"`
}

// ID события начисления для транзакции
func PointEventID(transactionID string) string {
	return "pe_" + transactionID
}

func (e PointEvent) Key() CustomerKey {
	return CustomerKey{e.Phone, e.RestaurantID}
}

// событие открыто для списания
func (e PointEvent) Open() bool {
	return e.Status == EventActive || e.Status == EventPartial
}

// Потребленная часть события в списании
type ConsumedEvent struct {
	PointEventID string `bson:"point_event_id" json:"point_event_id"`
	Used         int64  `bson:"used" json:"used"`
}

// Списание - неизменяемая запись, одна на успешный вызов
type RedemptionRecord struct {
	ID                string          `bson:"_id" json:"id"`
	RedemptionID      string          `bson:"redemption_id" json:"redemption_id"`
	Phone             string          `bson:"customer_phone" json:"customer_phone"`
	RestaurantID      string          `bson:"restaurant_id" json:"restaurant_id"`
	PointsRedeemed    int64           `bson:"points_redeemed" json:"points_redeemed"`
	RewardDescription string          `bson:"reward_description,omitempty" json:"reward_description,omitempty"`
	ConsumedEvents    []ConsumedEvent `bson:"consumed_events" json:"consumed_events"`
	Status            string          `bson:"status" json:"status"`
	CreatedAt         time.Time       `bson:"created_at" json:"created_at"`
}

type Counter struct {
	ID    string `bson:"_id" json:"id"`
	Count int64  `bson:"count" json:"count"`
}

type Restaurant struct {
	ID         string `bson:"_id" json:"id"`
	Name       string `bson:"restaurant_name,omitempty" json:"restaurant_name,omitempty"`
	ExpiryDays int    `bson:"points_expiry_days,omitempty" json:"points_expiry_days,omitempty"`
}

// Аудит расхождения баланса и событий
type AnomalyRecord struct {
	ID           string    `bson:"_id" json:"id"`
	Type         string    `bson:"type" json:"type"`
	CustomerID   string    `bson:"customer_id" json:"customer_id"`
	RedemptionID string    `bson:"redemption_id" json:"redemption_id"`
	Amount       int64     `bson:"amount" json:"amount"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// Изменение агрегата клиента: инкременты + установки полей
type CustomerUpdate struct {
	IncBalance        int64
	IncEarned         int64
	IncRedeemed       int64
	IncVisits         int64
	SetLastVisit      *time.Time
	SetLastRedeemedAt *time.Time
	SetName           string // только если имя еще не заполнено
}

// Изменение события начисления при списании или сгорании
type PointEventUpdate struct {
	Remaining  int64
	Status     string
	RedeemedAt *time.Time
	ExpiredAt  *time.Time
}
