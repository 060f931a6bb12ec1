// internal/clients/telegram_client.go
package clients

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"bookrental/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TelegramClient posts messages through the Telegram Bot API.
type TelegramClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewTelegramClient(cfg config.TelegramConfig) *TelegramClient {
	return &TelegramClient{
		baseURL:    cfg.APIURL,
		token:      cfg.BotToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage delivers text to the chat.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token), bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var result botResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("telegram rejected message: status %d: %s", resp.StatusCode, result.Description)
	}

	return nil
}
