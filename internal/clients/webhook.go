package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lnkday/automation-service/internal/domain"
)

// WebhookClient posts JSON to arbitrary webhook URLs. Chat webhooks get a
// shorter timeout; chat providers answer fast or not at all.
type WebhookClient struct {
	httpClient *http.Client
	chatClient *http.Client
}

func NewWebhookClient() *WebhookClient {
	return &WebhookClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		chatClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *WebhookClient) Send(ctx context.Context, url string, body map[string]interface{}) error {
	return post(ctx, c.httpClient, url, body)
}

func (c *WebhookClient) SendChat(ctx context.Context, url string, msg domain.ChatMessage) error {
	body := map[string]interface{}{"text": msg.Text}
	if msg.Channel != "" {
		body["channel"] = msg.Channel
	}
	if len(msg.Attachments) > 0 {
		body["attachments"] = msg.Attachments
	}
	return post(ctx, c.chatClient, url, body)
}

func post(ctx context.Context, client *http.Client, url string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling webhook body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
