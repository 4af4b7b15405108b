package endpoint

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient talks to OpenAI-compatible APIs and Azure OpenAI deployments
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates the client. For azure the URL is the resource
// endpoint and the api version is sent as a query parameter.
func NewOpenAIClient(opts Options) *OpenAIClient {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	if opts.Type == TypeAzure {
		version := opts.APIVersion
		if version == "" {
			version = DefaultAPIVersion
		}
		reqOpts = append(reqOpts,
			azure.WithEndpoint(strings.TrimRight(opts.URL, "/"), version),
			azure.WithAPIKey(opts.APIKey),
		)
	} else {
		reqOpts = append(reqOpts,
			option.WithBaseURL(opts.URL),
			option.WithAPIKey(opts.APIKey),
		)
	}

	return &OpenAIClient{client: openai.NewClient(reqOpts...)}
}

// Complete sends a chat completion
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &StatusError{Code: apiErr.StatusCode, Body: apiErr.RawJSON(), Err: err}
		}
		return nil, err
	}

	completion := &Completion{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	if len(resp.Choices) > 0 {
		completion.Content = resp.Choices[0].Message.Content
	}
	return completion, nil
}
