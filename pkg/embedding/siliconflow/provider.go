package siliconflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"deep-research-be/pkg/embedding"
)

// SiliconFlowProvider calls any OpenAI-compatible /embeddings endpoint.
// The default target is the SiliconFlow API.
type SiliconFlowProvider struct {
	BaseURL string
	ApiKey  string
	Model   string
	Client  *http.Client
}

var _ embedding.EmbeddingProvider = &SiliconFlowProvider{}

func NewSiliconFlowProvider(baseURL, apiKey, model string) *SiliconFlowProvider {
	if baseURL == "" {
		baseURL = "https://api.siliconflow.cn/v1"
	}
	if model == "" {
		model = "BAAI/bge-m3"
	}
	return &SiliconFlowProvider{
		BaseURL: baseURL,
		ApiKey:  apiKey,
		Model:   model,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *SiliconFlowProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *SiliconFlowProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, 0, len(texts))
	for _, batch := range embedding.Batches(texts) {
		vectors, err := p.embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		results = append(results, vectors...)
	}
	return results, nil
}

func (p *SiliconFlowProvider) embed(ctx context.Context, input []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model: p.Model,
		Input: input,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := p.BaseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.ApiKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding api error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(bodyBytes, &embResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("embedding api returned error: %s", embResp.Error.Message)
	}
	if len(embResp.Data) != len(input) {
		return nil, fmt.Errorf("embedding api returned %d vectors for %d inputs", len(embResp.Data), len(input))
	}

	// The API is not required to preserve input order.
	sort.Slice(embResp.Data, func(i, j int) bool {
		return embResp.Data[i].Index < embResp.Data[j].Index
	})

	vectors := make([][]float32, len(embResp.Data))
	for i, d := range embResp.Data {
		vectors[i] = embedding.NormalizeVector(d.Embedding)
	}
	return vectors, nil
}
