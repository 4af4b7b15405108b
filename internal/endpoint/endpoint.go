package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Type selects the endpoint variant
type Type string

const (
	TypeAzure   Type = "azure"
	TypeOpenAI  Type = "openai"
	TypeCustom  Type = "custom"
	TypeBedrock Type = "bedrock"
)

// Types lists the supported variants
var Types = []Type{TypeAzure, TypeOpenAI, TypeCustom, TypeBedrock}

// DefaultAPIVersion is sent to Azure deployments when none is configured
const DefaultAPIVersion = "2023-05-15"

// DefaultTokenPath locates the token count in a custom endpoint response
const DefaultTokenPath = "usage.total_tokens"

// DefaultTimeout bounds a single request
const DefaultTimeout = 500 * time.Second

// Request is a single-turn chat completion
type Request struct {
	Model     string
	Prompt    string
	MaxTokens int // 0 leaves the limit to the endpoint
}

// Completion is the endpoint's answer
type Completion struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Content          string
}

// OutputTokens returns the generated token count, falling back to the total
// when the endpoint does not split usage.
func (c *Completion) OutputTokens() int {
	if c.CompletionTokens > 0 {
		return c.CompletionTokens
	}
	return c.TotalTokens
}

// Client sends one request and waits for the complete response.
// Implementations must honor ctx cancellation and must not retry.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Options configures a client
type Options struct {
	Type       Type
	URL        string
	APIKey     string
	APIVersion string
	Region     string
	TokenPath  string
	HTTPClient *http.Client
}

// New builds the client for opts.Type
func New(ctx context.Context, opts Options) (Client, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	switch opts.Type {
	case TypeAzure, TypeOpenAI:
		return NewOpenAIClient(opts), nil
	case TypeCustom:
		return NewCustomClient(opts), nil
	case TypeBedrock:
		return NewBedrockClient(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, opts.Type)
	}
}
