package deepseek

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deep-research-be/pkg/llm"
)

// DeepSeekProvider talks to any OpenAI-compatible chat completions endpoint.
// The default target is the DeepSeek API.
type DeepSeekProvider struct {
	BaseURL   string
	ApiKey    string
	ModelName string
	Client    *http.Client
}

var _ llm.LLMProvider = &DeepSeekProvider{}

func NewDeepSeekProvider(baseURL, apiKey, modelName string) *DeepSeekProvider {
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}
	if modelName == "" {
		modelName = "deepseek-chat"
	}
	return &DeepSeekProvider{
		BaseURL:   baseURL,
		ApiKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 180 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// --- Interface Implementation ---

func (p *DeepSeekProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	body, err := p.send(ctx, history, false, opts...)
	if err != nil {
		return "", err
	}
	defer body.Close()

	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("deepseek error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *DeepSeekProvider) ChatStream(ctx context.Context, history []llm.Message, onToken func(string), opts ...llm.Option) (string, error) {
	body, err := p.send(ctx, history, true, opts...)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // skip malformed keep-alive frames
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content == "" {
				continue
			}
			full.WriteString(c.Delta.Content)
			if onToken != nil {
				onToken(c.Delta.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("read stream: %w", err)
	}
	return full.String(), nil
}

func (p *DeepSeekProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// send performs the HTTP call and maps provider-level refusals onto
// llm.ErrPolicyRejected so callers can distinguish safety blocks from
// transport failures.
func (p *DeepSeekProvider) send(ctx context.Context, history []llm.Message, stream bool, opts ...llm.Option) (io.ReadCloser, error) {
	options := &llm.Options{
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(options)
	}

	messages := make([]chatMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		messages[i] = chatMessage{Role: role, Content: msg.Content}
	}

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      stream,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := p.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.ApiKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepseek request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		bodyStr := string(bodyBytes)
		// DeepSeek signals content moderation blocks as a 400 with this marker.
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(bodyStr, "Content Exists Risk") {
			return nil, fmt.Errorf("deepseek moderation block: %w", llm.ErrPolicyRejected)
		}
		return nil, fmt.Errorf("deepseek error: status %d, body: %s", resp.StatusCode, bodyStr)
	}

	return resp.Body, nil
}
