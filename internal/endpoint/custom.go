package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// CustomClient posts a minimal chat payload to an arbitrary HTTP endpoint and
// reads the token count from a configurable JSON path of the response.
type CustomClient struct {
	url        string
	apiKey     string
	tokenPath  string
	httpClient *http.Client
}

type customMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type customPayload struct {
	Model     string          `json:"model"`
	Messages  []customMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

// NewCustomClient creates the client
func NewCustomClient(opts Options) *CustomClient {
	tokenPath := opts.TokenPath
	if tokenPath == "" {
		tokenPath = DefaultTokenPath
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &CustomClient{
		url:        opts.URL,
		apiKey:     opts.APIKey,
		tokenPath:  tokenPath,
		httpClient: httpClient,
	}
}

// Complete posts the prompt and extracts the token count
func (c *CustomClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	body, err := json.Marshal(customPayload{
		Model:     req.Model,
		Messages:  []customMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	if !gjson.ValidBytes(respBody) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	tokens := gjson.GetBytes(respBody, c.tokenPath)
	if tokens.Type != gjson.Number {
		return nil, fmt.Errorf("response has no numeric token count at %q", c.tokenPath)
	}

	// the configured path is authoritative, so usage is not split here
	return &Completion{
		TotalTokens: int(tokens.Int()),
		Content:     gjson.GetBytes(respBody, "choices.0.message.content").String(),
	}, nil
}
