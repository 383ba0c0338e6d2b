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

// AnalyticsClient requests report generation from the analytics service.
type AnalyticsClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAnalyticsClient(baseURL string) *AnalyticsClient {
	return &AnalyticsClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type generateReportRequest struct {
	TeamID     string   `json:"teamId"`
	ReportType string   `json:"reportType"`
	Format     string   `json:"format"`
	Recipients []string `json:"recipients,omitempty"`
}

type generateReportResponse struct {
	ReportID string `json:"reportId"`
}

func (c *AnalyticsClient) GenerateReport(ctx context.Context, r domain.ReportRequest) (string, error) {
	payload, err := json.Marshal(generateReportRequest{
		TeamID:     r.TeamID,
		ReportType: r.ReportType,
		Format:     r.Format,
		Recipients: r.Recipients,
	})
	if err != nil {
		return "", fmt.Errorf("marshalling report request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reports/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analytics service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("analytics service returned %d: %s", resp.StatusCode, string(body))
	}

	var out generateReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding report response: %w", err)
	}
	return out.ReportID, nil
}
