package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	model "github.com/glkeru/loyalty/ledger/internal/models"
	"go.uber.org/zap"
)

const graphURL = "https://graph.facebook.com/v21.0"

// Отправка текстовых сообщений через WhatsApp Graph API
type Sender struct {
	token         string
	phoneNumberID string
	base          string
	client        *http.Client
	logger        *zap.Logger
}

func NewSender(token string, phoneNumberID string, logger *zap.Logger) (*Sender, error) {
	if token == "" {
		return nil, fmt.Errorf("env WHATSAPP_TOKEN is not set")
	}
	if phoneNumberID == "" {
		return nil, fmt.Errorf("env PHONE_NUMBER_ID is not set")
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return &Sender{token, phoneNumberID, graphURL, client, logger}, nil
}

type textPayload struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// 3 попытки с экспоненциальной паузой,
// клиентские ошибки кроме 429 не ретраим
func (s *Sender) SendText(ctx context.Context, phone string, text string) error {
	payload := textPayload{
		MessagingProduct: "whatsapp",
		To:               model.CleanPhone(phone),
		Type:             "text",
		Text:             textBody{text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := s.base + "/" + s.phoneNumberID + "/messages"

	const maxRetries = 3
	baseDelay := time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(baseDelay << (attempt - 1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+s.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			s.logger.Error("whatsapp send", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}
		s.logger.Error("whatsapp api error",
			zap.Int("attempt", attempt+1),
			zap.Int("code", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("whatsapp api error: %s", resp.Status)
		}
	}
	return fmt.Errorf("whatsapp send: max retries exceeded")
}
