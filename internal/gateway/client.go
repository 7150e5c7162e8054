// Package gateway wraps the external chat-completion endpoint with bounded
// retry, generation controls and provider-specific parameterization.
package gateway

import (
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
	"github.com/xkilldash9x/webpilot-cli/internal/conversation"
	"github.com/xkilldash9x/webpilot-cli/internal/llmutil"
)

// stopSequences bounds generation to a single tool call: the closing action
// delimiter plus the model's turn-end markers.
var stopSequences = []string{"</tool_call>", "<|im_end|>", "<|endoftext|>"}

// lmStudioTopP is the nucleus-sampling threshold added for LM Studio
// endpoints, which otherwise sample too greedily at temperature 0.
const lmStudioTopP float32 = 0.95

// chatAPI is the slice of the OpenAI SDK the client consumes. Narrowing it
// to one method keeps the retry path testable.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client calls the configured OpenAI-compatible inference endpoint. It
// implements schemas.ModelCaller.
type Client struct {
	api        chatAPI
	cfg        config.LLMConfig
	retry      RetryPolicy
	limiter    *rate.Limiter
	isLMStudio bool
	logger     *zap.Logger
}

var _ schemas.ModelCaller = (*Client)(nil)

// New builds a gateway client from configuration with the given retry policy.
func New(cfg config.LLMConfig, policy RetryPolicy, logger *zap.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.MinRequestInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinRequestInterval), 1)
	}

	return &Client{
		api:        openai.NewClientWithConfig(clientCfg),
		cfg:        cfg,
		retry:      policy,
		limiter:    limiter,
		isLMStudio: isLMStudioEndpoint(cfg.BaseURL, cfg.APIKey),
		logger:     logger.Named("gateway"),
	}
}

// effectiveTemperature keeps a configured temperature of 0 on the wire. The
// SDK marks the field omitempty, so a literal 0 would be dropped from the
// request body and the provider would fall back to its own default instead
// of greedy decoding; the smallest positive float is the SDK's documented
// stand-in for 0.
func effectiveTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// isLMStudioEndpoint identifies the LM Studio provider by its address and
// credential shape: the default local port or the conventional placeholder
// key.
func isLMStudioEndpoint(baseURL, apiKey string) bool {
	return strings.Contains(baseURL, "1234") || strings.Contains(apiKey, "lm-studio")
}

// Complete performs one chat completion over the supplied conversation,
// retrying transient failures per the injected policy. The final error
// propagates after exhaustion.
func (c *Client) Complete(ctx context.Context, messages []schemas.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    conversation.ToOpenAI(messages),
		Temperature: effectiveTemperature(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
		Stop:        stopSequences,
	}
	if c.isLMStudio {
		req.TopP = lmStudioTopP
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		content, err := c.callOnce(ctx, req)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if attempt == c.retry.MaxAttempts {
			break
		}
		backoff := c.retry.Backoff(attempt)
		c.logger.Warn("Model call failed, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if err := llmutil.Sleep(ctx, backoff); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("model call failed after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

// callOnce performs a single attempt under the configured request timeout.
func (c *Client) callOnce(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
