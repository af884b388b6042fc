package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/inkwell-backend/internal/types"
)

// Client is the HTTP implementation of API, speaking to the backend the same
// routes the web wizard uses.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      accessToken,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("Failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return decodeRateLimit(raw)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, payload.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("Failed to decode response: %w", err)
	}
	return nil
}

func decodeRateLimit(raw []byte) error {
	var payload struct {
		Usage struct {
			Remaining int       `json:"remaining"`
			Limit     int       `json:"limit"`
			ResetAt   time.Time `json:"resetAt"`
		} `json:"usage"`
	}
	_ = json.Unmarshal(raw, &payload)
	return &RateLimitError{
		Remaining: payload.Usage.Remaining,
		Limit:     payload.Usage.Limit,
		ResetAt:   payload.Usage.ResetAt,
	}
}

func (c *Client) GenerateQuestions(ctx context.Context, req GenerateRequest) (*types.QuestionBatch, error) {
	var payload struct {
		Batch types.QuestionBatch `json:"batch"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/interview/generate-questions", req, &payload); err != nil {
		return nil, err
	}
	return &payload.Batch, nil
}

func (c *Client) SaveProgress(ctx context.Context, contributionID string, req SaveRequest) error {
	body := map[string]any{}
	if req.SetHistory {
		body["interviewHistory"] = req.InterviewHistory
	}
	if req.SetCurrentQuestion {
		body["currentQuestion"] = req.CurrentQuestion
	}
	if req.Status != "" {
		body["status"] = req.Status
	}
	return c.do(ctx, http.MethodPatch, "/api/contributions/"+contributionID+"/progress", body, nil)
}

func (c *Client) GetContribution(ctx context.Context, contributionID string) (*ContributionSnapshot, error) {
	var payload struct {
		Contribution types.Contribution `json:"contribution"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/contributions/"+contributionID, nil, &payload); err != nil {
		return nil, err
	}
	contribution := payload.Contribution
	brief, err := contribution.GetBrief()
	if err != nil {
		return nil, fmt.Errorf("Failed to decode contribution brief: %w", err)
	}
	history, err := contribution.GetHistory()
	if err != nil {
		return nil, fmt.Errorf("Failed to decode interview history: %w", err)
	}
	current, err := contribution.GetCurrentQuestion()
	if err != nil {
		return nil, fmt.Errorf("Failed to decode current question: %w", err)
	}
	return &ContributionSnapshot{
		ID:               contribution.ID.String(),
		Status:           contribution.Status,
		Brief:            brief,
		Language:         contribution.Language,
		InterviewHistory: history,
		CurrentQuestion:  current,
	}, nil
}
