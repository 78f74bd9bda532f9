package ledger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// входящее сообщение Meta webhook, только нужные поля
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []struct {
					From string `json:"from"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
				Statuses []struct {
					Status string `json:"status"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Подтверждение подписки webhook
func (h *LedgerHandler) VerifyWebhookHandler(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	h.logger.Warn("webhook verification failed", zap.String("mode", mode))
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// Входящие сообщения: запрос баланса по слову BALANCE,
// остальное - вежливый ответ. Onboarding по кодам сюда не входит.
func (h *LedgerHandler) WebhookHandler(w http.ResponseWriter, req *http.Request) {
	payload := &webhookPayload{}
	if err := json.NewDecoder(req.Body).Decode(payload); err != nil {
		h.Log("Unmarshal", "WebhookHandler", err)
		http.Error(w, "Body is not correct", http.StatusBadRequest)
		return
	}
	defer req.Body.Close()

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			for _, status := range value.Statuses {
				h.logger.Info("message status", zap.String("status", status.Status))
			}
			for _, message := range value.Messages {
				if message.Text == nil {
					continue
				}
				h.replyText(req, message.From, message.Text.Body)
			}
		}
	}
	h.writeJSON(w, "WebhookHandler", map[string]string{"status": "ok"})
}

func (h *LedgerHandler) replyText(req *http.Request, from string, text string) {
	if h.notify == nil {
		return
	}
	var reply string
	if strings.EqualFold(strings.TrimSpace(text), "balance") {
		points, err := h.service.Balance(req.Context(), from, h.restaurantID)
		if err != nil {
			reply = "We could not find your loyalty account. Visit us to start earning points!"
		} else {
			reply = fmt.Sprintf("You have %d points. Show this message to the cashier to redeem!", points)
		}
	} else {
		reply = "Thanks for your message! Send BALANCE to check your points."
	}
	if err := h.notify.SendText(req.Context(), from, reply); err != nil {
		h.Log("SendText", "WebhookHandler", err)
	}
}
