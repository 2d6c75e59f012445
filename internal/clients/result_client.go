package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result — результат QC из реестра результатов.
type Result struct {
	ID            string `json:"id"`
	SampleID      string `json:"sampleId"`
	SubmittedToQA bool   `json:"submittedToQA"`
	TestName      string `json:"testName"`
	Outcome       string `json:"outcome"`
}

type ResultClient interface {
	GetByID(ctx context.Context, resultID string) (*Result, error)
}

type resultClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewResultClient(baseURL string, timeout time.Duration) ResultClient {
	return &resultClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *resultClient) GetByID(ctx context.Context, resultID string) (*Result, error) {
	url := fmt.Sprintf("%s/api/v1/results/%s", c.baseURL, resultID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "QA-Release-Service/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call result registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("result %s: %w", resultID, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("result registry returned status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode result registry response: %w", err)
	}

	return &result, nil
}
