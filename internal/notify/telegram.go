package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fitbook/trainer-crm-api/pkg/config"
)

// TelegramSender delivers messages through the Telegram Bot API. The
// recipient is the client's registered chat id.
type TelegramSender struct {
	token   string
	apiBase string
	client  *http.Client
	logger  *zap.Logger
}

// NewTelegramSender builds a sender from config.
func NewTelegramSender(cfg config.TelegramConfig, logger *zap.Logger) *TelegramSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &TelegramSender{
		token:   cfg.BotToken,
		apiBase: apiBase,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type sendMessageRequest struct {
	ChatID      string `json:"chat_id"`
	Text        string `json:"text"`
	ReplyMarkup *struct {
		InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
	} `json:"reply_markup,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send implements Sender.
func (s *TelegramSender) Send(ctx context.Context, recipient string, msg Message) error {
	payload := sendMessageRequest{ChatID: recipient, Text: msg.Text}
	if msg.ConfirmAction != "" {
		payload.ReplyMarkup = &struct {
			InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
		}{
			InlineKeyboard: [][]inlineButton{{
				{Text: "Confirm", CallbackData: msg.ConfirmAction + ":confirm"},
				{Text: "Decline", CallbackData: msg.ConfirmAction + ":decline"},
			}},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed sendMessageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || !parsed.OK {
		s.logger.Warn("telegram send rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("description", parsed.Description))
		return fmt.Errorf("telegram send failed: status %d", resp.StatusCode)
	}
	return nil
}
