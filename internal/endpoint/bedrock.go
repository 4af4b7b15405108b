package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/tidwall/gjson"
)

// modelFamily selects the Bedrock request and response schema
type modelFamily int

const (
	familyUnknown modelFamily = iota
	familyClaude
	familyDeepSeek
	familyLlama
	familyMistral
	familyQwen
)

const invocationMetrics = "amazon-bedrock-invocationMetrics"

// BedrockClient invokes models on Amazon Bedrock Runtime
type BedrockClient struct {
	client *bedrockruntime.Client
}

// NewBedrockClient creates the client. An API key of the form
// "ACCESS_KEY:SECRET_KEY" selects static credentials, otherwise the default
// credential chain is used. A non-empty URL overrides the service endpoint.
func NewBedrockClient(ctx context.Context, opts Options) (*BedrockClient, error) {
	var cfg aws.Config

	accessKey, secretKey, static := strings.Cut(opts.APIKey, ":")
	if static && accessKey != "" && secretKey != "" {
		cfg = aws.Config{
			Region:      opts.Region,
			Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		}
	} else {
		var err error
		cfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	client := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.Retryer = aws.NopRetryer{}
		if opts.URL != "" {
			o.BaseEndpoint = aws.String(opts.URL)
		}
	})

	return &BedrockClient{client: client}, nil
}

// Complete invokes the model without streaming
func (c *BedrockClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	family := detectFamily(req.Model)

	body, err := buildBedrockBody(family, req)
	if err != nil {
		return nil, err
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, classifyBedrockError(err)
	}

	return parseBedrockBody(family, output.Body)
}

// detectFamily maps a model id to its schema
func detectFamily(modelID string) modelFamily {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, "claude") || strings.Contains(id, "anthropic"):
		return familyClaude
	case strings.Contains(id, "deepseek"):
		return familyDeepSeek
	case strings.Contains(id, "mistral") || strings.Contains(id, "mixtral"):
		return familyMistral
	case strings.Contains(id, "qwen"):
		return familyQwen
	case strings.Contains(id, "llama") || strings.Contains(id, "meta"):
		return familyLlama
	default:
		return familyUnknown
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	AnthropicVersion string        `json:"anthropic_version"`
	MaxTokens        int           `json:"max_tokens"`
	Messages         []chatMessage `json:"messages"`
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type llamaRequest struct {
	Prompt    string `json:"prompt"`
	MaxGenLen int    `json:"max_gen_len,omitempty"`
}

type mistralRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// claudeDefaultMaxTokens is used because the Messages API requires a limit
const claudeDefaultMaxTokens = 1024

func buildBedrockBody(family modelFamily, req Request) ([]byte, error) {
	messages := []chatMessage{{Role: "user", Content: req.Prompt}}

	var payload any
	switch family {
	case familyClaude:
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = claudeDefaultMaxTokens
		}
		payload = claudeRequest{
			AnthropicVersion: "bedrock-2023-05-31",
			MaxTokens:        maxTokens,
			Messages:         messages,
		}
	case familyDeepSeek, familyQwen:
		payload = chatRequest{Messages: messages, MaxTokens: req.MaxTokens}
	case familyLlama:
		payload = llamaRequest{Prompt: req.Prompt, MaxGenLen: req.MaxTokens}
	case familyMistral:
		payload = mistralRequest{Prompt: "<s>[INST] " + req.Prompt + " [/INST]", MaxTokens: req.MaxTokens}
	default:
		return nil, fmt.Errorf("unsupported bedrock model: %s", req.Model)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare request: %w", err)
	}
	return body, nil
}

func parseBedrockBody(family modelFamily, body []byte) (*Completion, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to parse response: invalid JSON")
	}
	resp := gjson.ParseBytes(body)

	completion := &Completion{}
	switch family {
	case familyClaude:
		completion.PromptTokens = int(resp.Get("usage.input_tokens").Int())
		completion.CompletionTokens = int(resp.Get("usage.output_tokens").Int())
		completion.Content = resp.Get("content.0.text").String()
	case familyDeepSeek, familyQwen:
		completion.PromptTokens = int(resp.Get("usage.prompt_tokens").Int())
		completion.CompletionTokens = int(resp.Get("usage.completion_tokens").Int())
		completion.Content = resp.Get("choices.0.message.content").String()
	case familyLlama:
		completion.PromptTokens = int(resp.Get("prompt_token_count").Int())
		completion.CompletionTokens = int(resp.Get("generation_token_count").Int())
		completion.Content = resp.Get("generation").String()
	case familyMistral:
		completion.Content = resp.Get("outputs.0.text").String()
	}

	// Bedrock's own accounting wins when present
	if metrics := resp.Get(invocationMetrics); metrics.Exists() {
		if in := metrics.Get("inputTokenCount"); in.Exists() {
			completion.PromptTokens = int(in.Int())
		}
		if out := metrics.Get("outputTokenCount"); out.Exists() {
			completion.CompletionTokens = int(out.Int())
		}
	}

	completion.TotalTokens = completion.PromptTokens + completion.CompletionTokens
	return completion, nil
}

// classifyBedrockError attaches the HTTP status to SDK errors. Throttling
// and quota exceptions count as rate limiting whatever status carried them.
func classifyBedrockError(err error) error {
	var throttling *types.ThrottlingException
	if errors.As(err, &throttling) {
		return &StatusError{Code: http.StatusTooManyRequests, Body: throttling.ErrorMessage(), Err: err}
	}

	var quota *types.ServiceQuotaExceededException
	if errors.As(err, &quota) {
		return &StatusError{Code: http.StatusTooManyRequests, Body: quota.ErrorMessage(), Err: err}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return &StatusError{Code: respErr.HTTPStatusCode(), Body: apiMessage(err), Err: err}
	}

	return err
}

func apiMessage(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorMessage()
	}
	return ""
}
