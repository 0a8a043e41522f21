package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// JinaReranker calls the Jina rerank API to score documents against a query.
type JinaReranker struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ Reranker = &JinaReranker{}

func NewJinaReranker(apiKey string, model string) *JinaReranker {
	if model == "" {
		model = "jina-reranker-v2-base-multilingual"
	}
	return &JinaReranker{
		apiKey:  apiKey,
		baseURL: "https://api.jina.ai/v1/rerank",
		model:   model,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *JinaReranker) Rerank(ctx context.Context, query string, documents []string) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	reqBody := rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      len(documents),
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.apiKey))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina rerank error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var jinaResp rerankResponse
	if err := json.Unmarshal(bodyBytes, &jinaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if jinaResp.Error != nil {
		return nil, fmt.Errorf("jina rerank returned error: %s", jinaResp.Error.Message)
	}

	results := make([]Result, len(jinaResp.Results))
	for i, res := range jinaResp.Results {
		results[i] = Result{Index: res.Index, Score: res.RelevanceScore}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}
