package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lnkday/automation-service/internal/domain"
)

// TeamServiceClient looks up team membership in the team directory service.
type TeamServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTeamServiceClient(baseURL string) *TeamServiceClient {
	return &TeamServiceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *TeamServiceClient) GetMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/teams/%s/members", c.baseURL, teamID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("team service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("team service returned %d: %s", resp.StatusCode, string(body))
	}

	var members []domain.TeamMember
	if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
		return nil, fmt.Errorf("decoding team members: %w", err)
	}
	return members, nil
}
