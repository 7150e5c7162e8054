package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
)

// fakeChatAPI scripts responses per attempt.
type fakeChatAPI struct {
	responses []func() (openai.ChatCompletionResponse, error)
	requests  []openai.ChatCompletionRequest
}

func (f *fakeChatAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx]()
}

func okResponse(content string) func() (openai.ChatCompletionResponse, error) {
	return func() (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: content}},
			},
		}, nil
	}
}

func errResponse(err error) func() (openai.ChatCompletionResponse, error) {
	return func() (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, err
	}
}

// fastRetry keeps test runtime negligible while preserving the schedule shape.
func fastRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Multiplier:     2.0,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func newTestClient(cfg config.LLMConfig, api chatAPI) *Client {
	c := New(cfg, fastRetry(), zap.NewNop())
	c.api = api
	return c
}

func testMessages() []schemas.Message {
	return []schemas.Message{
		schemas.SystemMessage("system prompt"),
		schemas.UserMessage("what next?", &schemas.ImageAttachment{Data: []byte{1}, MimeType: "image/png"}),
	}
}

func TestCompleteSuccessFirstAttempt(t *testing.T) {
	api := &fakeChatAPI{responses: []func() (openai.ChatCompletionResponse, error){okResponse("done")}}
	c := newTestClient(config.LLMConfig{Model: "m", MaxTokens: 1024}, api)

	out, err := c.Complete(context.Background(), testMessages())
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	require.Len(t, api.requests, 1)

	req := api.requests[0]
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.Equal(t, stopSequences, req.Stop)
	require.Len(t, req.Messages, 2)
	assert.Len(t, req.Messages[1].MultiContent, 2)
}

func TestCompleteRetriesThenSucceeds(t *testing.T) {
	transient := errors.New("rate limited")
	api := &fakeChatAPI{responses: []func() (openai.ChatCompletionResponse, error){
		errResponse(transient),
		errResponse(transient),
		okResponse("third time lucky"),
	}}
	c := newTestClient(config.LLMConfig{Model: "m", MaxTokens: 256}, api)

	out, err := c.Complete(context.Background(), testMessages())
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", out)
	assert.Len(t, api.requests, 3)
}

func TestCompleteExhaustionPropagatesLastError(t *testing.T) {
	boom := errors.New("endpoint down")
	api := &fakeChatAPI{responses: []func() (openai.ChatCompletionResponse, error){errResponse(boom)}}
	c := newTestClient(config.LLMConfig{Model: "m", MaxTokens: 256}, api)

	_, err := c.Complete(context.Background(), testMessages())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, api.requests, 3)
}

func TestCompleteEmptyChoicesIsAnError(t *testing.T) {
	api := &fakeChatAPI{responses: []func() (openai.ChatCompletionResponse, error){
		func() (openai.ChatCompletionResponse, error) { return openai.ChatCompletionResponse{}, nil },
	}}
	c := newTestClient(config.LLMConfig{Model: "m", MaxTokens: 256}, api)

	_, err := c.Complete(context.Background(), testMessages())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestLMStudioDetectionAddsTopP(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.LLMConfig
		wantTop bool
	}{
		{"local port", config.LLMConfig{BaseURL: "http://localhost:1234/v1", APIKey: "k", Model: "m", MaxTokens: 1}, true},
		{"placeholder key", config.LLMConfig{BaseURL: "https://example.com/v1", APIKey: "lm-studio", Model: "m", MaxTokens: 1}, true},
		{"remote provider", config.LLMConfig{BaseURL: "https://openrouter.ai/api/v1", APIKey: "sk-xyz", Model: "m", MaxTokens: 1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeChatAPI{responses: []func() (openai.ChatCompletionResponse, error){okResponse("ok")}}
			c := newTestClient(tc.cfg, api)

			_, err := c.Complete(context.Background(), testMessages())
			require.NoError(t, err)
			require.Len(t, api.requests, 1)
			if tc.wantTop {
				assert.Equal(t, lmStudioTopP, api.requests[0].TopP)
			} else {
				assert.Zero(t, api.requests[0].TopP)
			}
		})
	}
}

func TestCompleteZeroTemperatureReachesWire(t *testing.T) {
	api := &fakeChatAPI{responses: []func() (openai.ChatCompletionResponse, error){okResponse("ok")}}
	c := newTestClient(config.LLMConfig{Model: "m", MaxTokens: 256, Temperature: 0}, api)

	_, err := c.Complete(context.Background(), testMessages())
	require.NoError(t, err)
	require.Len(t, api.requests, 1)

	// The SDK drops a zero Temperature via omitempty, so a configured 0 must
	// be substituted with the smallest positive float to survive marshaling.
	assert.Equal(t, float32(math.SmallestNonzeroFloat32), api.requests[0].Temperature)

	body, err := json.Marshal(api.requests[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), `"temperature"`)
}

func TestCompleteNonZeroTemperaturePassesThrough(t *testing.T) {
	api := &fakeChatAPI{responses: []func() (openai.ChatCompletionResponse, error){okResponse("ok")}}
	c := newTestClient(config.LLMConfig{Model: "m", MaxTokens: 256, Temperature: 0.7}, api)

	_, err := c.Complete(context.Background(), testMessages())
	require.NoError(t, err)
	require.Len(t, api.requests, 1)
	assert.InDelta(t, 0.7, api.requests[0].Temperature, 0.0001)
}

func TestRetryPolicyBackoffSchedule(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(3))
	assert.Equal(t, 10*time.Second, p.Backoff(4), "backoff is capped")
	assert.Equal(t, 10*time.Second, p.Backoff(10))
}

func TestCompleteHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := &fakeChatAPI{responses: []func() (openai.ChatCompletionResponse, error){
		errResponse(errors.New("transient")),
	}}
	c := newTestClient(config.LLMConfig{Model: "m", MaxTokens: 1}, api)

	_, err := c.Complete(ctx, testMessages())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
