package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFamily(t *testing.T) {
	tests := map[string]modelFamily{
		"anthropic.claude-3-haiku-20240307-v1:0": familyClaude,
		"us.deepseek.r1-v1:0":                    familyDeepSeek,
		"meta.llama3-8b-instruct-v1:0":           familyLlama,
		"mistral.mistral-large-2402-v1:0":        familyMistral,
		"mistral.mixtral-8x7b-instruct-v0:1":     familyMistral,
		"qwen.qwen3-32b-v1:0":                    familyQwen,
		"amazon.titan-text-express-v1":           familyUnknown,
	}
	for model, want := range tests {
		assert.Equal(t, want, detectFamily(model), model)
	}
}

func TestBuildBedrockBody(t *testing.T) {
	t.Run("claude defaults max tokens", func(t *testing.T) {
		body, err := buildBedrockBody(familyClaude, Request{Prompt: "hi"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"anthropic_version":"bedrock-2023-05-31","max_tokens":1024,"messages":[{"role":"user","content":"hi"}]}`, string(body))
	})

	t.Run("chat format", func(t *testing.T) {
		body, err := buildBedrockBody(familyQwen, Request{Prompt: "hi", MaxTokens: 50})
		require.NoError(t, err)
		assert.JSONEq(t, `{"messages":[{"role":"user","content":"hi"}],"max_tokens":50}`, string(body))
	})

	t.Run("llama", func(t *testing.T) {
		body, err := buildBedrockBody(familyLlama, Request{Prompt: "hi", MaxTokens: 50})
		require.NoError(t, err)
		assert.JSONEq(t, `{"prompt":"hi","max_gen_len":50}`, string(body))
	})

	t.Run("mistral wraps instruction", func(t *testing.T) {
		body, err := buildBedrockBody(familyMistral, Request{Prompt: "hi"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"prompt":"<s>[INST] hi [/INST]"}`, string(body))
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := buildBedrockBody(familyUnknown, Request{Model: "amazon.titan", Prompt: "hi"})
		assert.ErrorContains(t, err, "unsupported bedrock model")
	})
}

func TestParseBedrockBody(t *testing.T) {
	tests := []struct {
		name   string
		family modelFamily
		body   string
		want   Completion
	}{
		{
			name:   "claude",
			family: familyClaude,
			body:   `{"content":[{"type":"text","text":"hey"}],"usage":{"input_tokens":4,"output_tokens":9}}`,
			want:   Completion{PromptTokens: 4, CompletionTokens: 9, TotalTokens: 13, Content: "hey"},
		},
		{
			name:   "deepseek",
			family: familyDeepSeek,
			body:   `{"choices":[{"message":{"content":"hey"}}],"usage":{"prompt_tokens":3,"completion_tokens":5}}`,
			want:   Completion{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8, Content: "hey"},
		},
		{
			name:   "llama",
			family: familyLlama,
			body:   `{"generation":"hey","prompt_token_count":2,"generation_token_count":6}`,
			want:   Completion{PromptTokens: 2, CompletionTokens: 6, TotalTokens: 8, Content: "hey"},
		},
		{
			name:   "mistral with invocation metrics",
			family: familyMistral,
			body:   `{"outputs":[{"text":"hey"}],"amazon-bedrock-invocationMetrics":{"inputTokenCount":10,"outputTokenCount":20}}`,
			want:   Completion{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30, Content: "hey"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBedrockBody(tt.family, []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}

	_, err := parseBedrockBody(familyClaude, []byte("{"))
	assert.Error(t, err)
}

func TestClassifyBedrockError(t *testing.T) {
	throttled := classifyBedrockError(&types.ThrottlingException{Message: aws.String("too many requests")})
	assert.True(t, IsRateLimited(throttled))
	assert.Equal(t, "too many requests", ResponseBody(throttled))

	quota := classifyBedrockError(&types.ServiceQuotaExceededException{Message: aws.String("quota")})
	assert.True(t, IsRateLimited(quota))

	plain := errors.New("dial tcp: connection refused")
	assert.Same(t, plain, classifyBedrockError(plain))
}

func newTestBedrockClient(t *testing.T, handler http.HandlerFunc) *BedrockClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewBedrockClient(context.Background(), Options{
		Type:       TypeBedrock,
		URL:        server.URL,
		APIKey:     "AKIDTEST:secret",
		Region:     "us-east-1",
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)
	return client
}

func TestBedrockClient_Complete(t *testing.T) {
	var got map[string]any
	client := newTestBedrockClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/model/"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/invoke"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"hey"}],"usage":{"input_tokens":4,"output_tokens":9}}`)
	})

	completion, err := client.Complete(context.Background(), Request{
		Model:     "anthropic.claude-3-haiku-20240307-v1:0",
		Prompt:    "hi",
		MaxTokens: 32,
	})
	require.NoError(t, err)

	assert.Equal(t, 9, completion.OutputTokens())
	assert.Equal(t, "hey", completion.Content)
	assert.EqualValues(t, 32, got["max_tokens"])
}

func TestBedrockClient_RateLimited(t *testing.T) {
	tests := []struct {
		name      string
		errorType string
		status    int
		message   string
	}{
		{"throttling", "ThrottlingException", http.StatusTooManyRequests, "Too many requests, please wait before trying again."},
		{"service quota", "ServiceQuotaExceededException", http.StatusBadRequest, "Your request exceeds the service quota for your account."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			client := newTestBedrockClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Amzn-ErrorType", tt.errorType)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"message":"`+tt.message+`"}`)
			})

			_, err := client.Complete(context.Background(), Request{Model: "anthropic.claude-3-haiku-20240307-v1:0", Prompt: "hi"})
			require.Error(t, err)
			assert.True(t, IsRateLimited(err), "status %d", StatusCode(err))
			assert.Equal(t, tt.message, ResponseBody(err))
			assert.Equal(t, 1, calls)
		})
	}
}

func TestBedrockClient_ValidationError(t *testing.T) {
	client := newTestBedrockClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amzn-ErrorType", "ValidationException")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"Malformed input request"}`)
	})

	_, err := client.Complete(context.Background(), Request{Model: "anthropic.claude-3-haiku-20240307-v1:0", Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.False(t, IsRateLimited(err))
}
