package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LinkServiceClient performs link mutations against the link-management
// service.
type LinkServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewLinkServiceClient(baseURL string) *LinkServiceClient {
	return &LinkServiceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *LinkServiceClient) UpdateLink(ctx context.Context, linkID string, fields map[string]interface{}) error {
	return c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/links/%s", linkID), fields)
}

func (c *LinkServiceClient) DisableLink(ctx context.Context, linkID string) error {
	return c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/links/%s", linkID), map[string]interface{}{"isActive": false})
}

func (c *LinkServiceClient) AddTag(ctx context.Context, linkID string, tag string) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/links/%s/tags", linkID), map[string]interface{}{"tag": tag})
}

func (c *LinkServiceClient) doJSON(ctx context.Context, method string, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("link service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("link service returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
