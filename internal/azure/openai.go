package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

const openAIAPIVersion = "2024-08-01-preview"

// OpenAIClient wraps the Azure OpenAI chat completion API with retries and logging.
// It satisfies service.ChatCompleter.
type OpenAIClient struct {
	client     *openai.Client
	deployment string
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
	reqOpts    []option.RequestOption
}

// OpenAIOption customizes an OpenAIClient
type OpenAIOption func(*OpenAIClient)

// WithRetries sets the attempt count and the base of the exponential backoff
func WithRetries(maxRetries int, baseDelay time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		c.baseDelay = baseDelay
	}
}

// WithRequestOptions passes extra options to the underlying SDK client
func WithRequestOptions(opts ...option.RequestOption) OpenAIOption {
	return func(c *OpenAIClient) {
		c.reqOpts = append(c.reqOpts, opts...)
	}
}

// NewOpenAIClient creates an Azure OpenAI client for one chat deployment
func NewOpenAIClient(endpoint, apiKey, deployment string, logger *zap.Logger, opts ...OpenAIOption) (*OpenAIClient, error) {
	if endpoint == "" || apiKey == "" || deployment == "" {
		return nil, fmt.Errorf("endpoint, apiKey, and deployment are required")
	}

	c := &OpenAIClient{
		deployment: deployment,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	// retries are handled here so they are logged
	reqOpts := append([]option.RequestOption{
		azure.WithEndpoint(endpoint, openAIAPIVersion),
		azure.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, c.reqOpts...)

	client := openai.NewClient(reqOpts...)
	c.client = &client

	return c, nil
}

// Deployment returns the chat deployment name requests are sent to
func (c *OpenAIClient) Deployment() string {
	return c.deployment
}

// Complete sends a chat completion request, retrying transient failures with exponential backoff
func (c *OpenAIClient) Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	startTime := time.Now()
	var lastErr error

	attempts := 0
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<uint(attempt-1))
			c.logger.Info("retrying chat completion",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("chat completion cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		attempts++
		result, err := c.complete(ctx, messages)
		if err == nil {
			c.logger.Info("chat completion finished",
				zap.String("deployment", c.deployment),
				zap.Duration("processing_time", time.Since(startTime)),
				zap.Int("attempts", attempts),
			)
			return result, nil
		}

		lastErr = err
		if !c.isRetryable(ctx, err) {
			c.logger.Warn("non-retryable chat completion error",
				zap.Error(err),
				zap.Int("attempt", attempts),
			)
			break
		}

		c.logger.Warn("chat completion failed, will retry",
			zap.Error(err),
			zap.Int("attempt", attempts),
		)
	}

	c.logger.Warn("chat completion failed",
		zap.Error(lastErr),
		zap.Duration("total_time", time.Since(startTime)),
		zap.Int("attempts", attempts),
	)

	return "", fmt.Errorf("chat completion failed after %d attempts: %w", attempts, lastErr)
}

// complete performs a single chat completion request
func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	requestStart := time.Now()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.deployment),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from Azure OpenAI")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty content in response")
	}

	c.logger.Debug("chat completion token usage",
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("request_time", time.Since(requestStart)),
	)

	return content, nil
}

// isRetryable reports whether err is worth another attempt.
// Cancelled requests and client errors other than rate limiting are final.
func (c *OpenAIClient) isRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}

	// transport errors and malformed responses
	return true
}
