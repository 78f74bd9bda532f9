package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	interf "github.com/glkeru/loyalty/ledger/internal/interfaces"
	model "github.com/glkeru/loyalty/ledger/internal/models"
	service "github.com/glkeru/loyalty/ledger/internal/services"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type LedgerHandler struct {
	router       *mux.Router
	service      *service.LedgerService
	notify       interf.Notifier
	logger       *zap.Logger
	verifyToken  string
	restaurantID string
}

func NewHandler(serv *service.LedgerService, notify interf.Notifier, logger *zap.Logger, verifyToken string, restaurantID string) *LedgerHandler {
	router := mux.NewRouter()
	handler := &LedgerHandler{router, serv, notify, logger, verifyToken, restaurantID}
	router.HandleFunc("/earn", handler.EarnHandler).Methods(http.MethodPost)
	router.HandleFunc("/redeem", handler.RedeemHandler).Methods(http.MethodPost)
	router.HandleFunc("/balance/{phone}", handler.BalanceHandler).Methods(http.MethodGet)
	router.HandleFunc("/expire", handler.ExpireHandler).Methods(http.MethodPost)
	router.HandleFunc("/webhook", handler.VerifyWebhookHandler).Methods(http.MethodGet)
	router.HandleFunc("/webhook", handler.WebhookHandler).Methods(http.MethodPost)
	router.Use(MiddlewareLog())
	return handler
}

func (h *LedgerHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.router.ServeHTTP(w, req)
}

func (h *LedgerHandler) Log(msg string, service string, err error) {
	h.logger.Error(msg,
		zap.String("service", service),
		zap.Error(err),
	)
}

// бизнес-ошибки отдаем как есть, остальное - 500 без деталей
func (h *LedgerHandler) writeError(w http.ResponseWriter, service string, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrCustomerNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrDuplicateTransaction):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.Log("internal error", service, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *LedgerHandler) writeJSON(w http.ResponseWriter, service string, response any) {
	j, err := json.Marshal(response)
	if err != nil {
		h.Log("Marshal", service, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(j)
}

type EarnRequest struct {
	TransactionID string  `json:"transaction_id"`
	Phone         string  `json:"phone"`
	RestaurantID  string  `json:"restaurant_id"`
	BillAmount    float64 `json:"bill_amount"`
	Points        int64   `json:"points"`
	Name          string  `json:"name,omitempty"`
}

// Начисление баллов
func (h *LedgerHandler) EarnHandler(w http.ResponseWriter, req *http.Request) {
	request := &EarnRequest{}
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		h.Log("Unmarshal", "EarnHandler", err)
		http.Error(w, "Body is not correct", http.StatusBadRequest)
		return
	}
	defer req.Body.Close()

	result, err := h.service.Earn(req.Context(), request.TransactionID, request.Phone, request.RestaurantID, request.BillAmount, request.Points, request.Name)
	if err != nil {
		h.writeError(w, "EarnHandler", err)
		return
	}
	h.writeJSON(w, "EarnHandler", result)
}

type RedeemRequest struct {
	Phone             string `json:"phone"`
	RestaurantID      string `json:"restaurant_id"`
	Points            int64  `json:"points"`
	RewardDescription string `json:"reward_description,omitempty"`
}

// Списание баллов
func (h *LedgerHandler) RedeemHandler(w http.ResponseWriter, req *http.Request) {
	request := &RedeemRequest{}
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		h.Log("Unmarshal", "RedeemHandler", err)
		http.Error(w, "Body is not correct", http.StatusBadRequest)
		return
	}
	defer req.Body.Close()

	result, err := h.service.Redeem(req.Context(), request.Phone, request.RestaurantID, request.Points, request.RewardDescription)
	if err != nil {
		h.writeError(w, "RedeemHandler", err)
		return
	}
	h.writeJSON(w, "RedeemHandler", result)
}

// Баланс и сверка
func (h *LedgerHandler) BalanceHandler(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	phone := vars["phone"]
	restaurantID := req.URL.Query().Get("restaurant_id")
	if restaurantID == "" {
		restaurantID = h.restaurantID
	}
	recompute := req.URL.Query().Get("recompute") == "true"

	result, err := h.service.CheckBalance(req.Context(), phone, restaurantID, recompute)
	if err != nil {
		h.writeError(w, "BalanceHandler", err)
		return
	}
	h.writeJSON(w, "BalanceHandler", result)
}

type ExpireResponse struct {
	ExpiredCount int `json:"expired_count"`
}

// Запуск сгорания просроченных событий
func (h *LedgerHandler) ExpireHandler(w http.ResponseWriter, req *http.Request) {
	count, err := h.service.RunExpirySweep(req.Context())
	if err != nil {
		h.writeError(w, "ExpireHandler", err)
		return
	}
	h.writeJSON(w, "ExpireHandler", ExpireResponse{count})
}
