package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotFound — реестр ответил 404: сущности не существует.
// Отличается от недоступности реестра: та проваливает операцию как upstream-ошибка.
var ErrNotFound = errors.New("not found in registry")

// Sample — проба QC из реестра проб. Реестром не владеем, только читаем.
type Sample struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	MaterialID   string `json:"materialId"`
	MaterialName string `json:"materialName"`
	BatchNumber  string `json:"batchNumber"`
}

type SampleClient interface {
	GetByID(ctx context.Context, sampleID string) (*Sample, error)
}

type sampleClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSampleClient(baseURL string, timeout time.Duration) SampleClient {
	return &sampleClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *sampleClient) GetByID(ctx context.Context, sampleID string) (*Sample, error) {
	url := fmt.Sprintf("%s/api/v1/samples/%s", c.baseURL, sampleID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "QA-Release-Service/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call sample registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("sample %s: %w", sampleID, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sample registry returned status %d: %s", resp.StatusCode, string(body))
	}

	var sample Sample
	if err := json.NewDecoder(resp.Body).Decode(&sample); err != nil {
		return nil, fmt.Errorf("failed to decode sample registry response: %w", err)
	}

	return &sample, nil
}
