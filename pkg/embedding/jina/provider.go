package jina

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

type JinaProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ embedding.EmbeddingProvider = &JinaProvider{}

func NewJinaProvider(apiKey string, model string) *JinaProvider {
	if model == "" {
		model = "jina-embeddings-v3"
	}
	return &JinaProvider{
		apiKey:  apiKey,
		baseURL: "https://api.jina.ai/v1/embeddings",
		model:   model,
		client: &http.Client{
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

func (p *JinaProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *JinaProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

func (p *JinaProvider) embed(ctx context.Context, input []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model: p.model,
		Input: input,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina api error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var jinaResp embeddingResponse
	if err := json.Unmarshal(bodyBytes, &jinaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if jinaResp.Error != nil {
		return nil, fmt.Errorf("jina api returned error: %s", jinaResp.Error.Message)
	}
	if len(jinaResp.Data) != len(input) {
		return nil, fmt.Errorf("jina api returned %d vectors for %d inputs", len(jinaResp.Data), len(input))
	}

	sort.Slice(jinaResp.Data, func(i, j int) bool {
		return jinaResp.Data[i].Index < jinaResp.Data[j].Index
	})

	vectors := make([][]float32, len(jinaResp.Data))
	for i, d := range jinaResp.Data {
		vectors[i] = embedding.NormalizeVector(d.Embedding)
	}
	return vectors, nil
}
