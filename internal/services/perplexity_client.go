package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/inkwell-backend/internal/apierr"
	"github.com/yungbote/inkwell-backend/internal/logger"
)

// PerplexityClient wraps the web-search-augmented chat completions API.
// Answers come with the citations the search actually retrieved.
type PerplexityClient interface {
	Model() string
	Search(ctx context.Context, system string, user string) (content string, citations []string, usage *TokenUsage, err error)
}

type perplexityClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewPerplexityClient(log *logger.Logger) (PerplexityClient, error) {
	apiKey := os.Getenv("PERPLEXITY_API_KEY")
	if apiKey == "" {
		return nil, apierr.Configuration("missing PERPLEXITY_API_KEY")
	}

	baseURL := os.Getenv("PERPLEXITY_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}

	model := os.Getenv("PERPLEXITY_MODEL")
	if model == "" {
		model = "sonar-pro"
	}

	timeoutSec := 30
	if v := os.Getenv("PERPLEXITY_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &perplexityClient{
		log:        log.With("service", "PerplexityClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: 1,
	}, nil
}

func (c *perplexityClient) Model() string { return c.model }

func (c *perplexityClient) Search(ctx context.Context, system string, user string) (string, []string, *TokenUsage, error) {
	ctx, span := otel.Tracer(llmTracerName).Start(ctx, "perplexity.search",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", "perplexity"),
			attribute.String("llm.model", c.model),
		),
	)
	defer span.End()

	req := chatCompletionsRequest{
		Model: c.model,
		Messages: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	backoff := 1 * time.Second
	var resp chatCompletionsResponse
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", nil, nil, ctx.Err()
		}
		_, raw, err := doJSONRequest(ctx, c.httpClient, "POST", c.baseURL+"/chat/completions", c.apiKey, req)
		if err == nil {
			if uErr := decodeStrictJSON(raw, &resp); uErr != nil {
				return "", nil, nil, apierr.GenerationMalformed("perplexity decode error: %v", uErr)
			}
			lastErr = nil
			break
		}
		lastErr = err
		if !isRetryableErr(err) || attempt == c.maxRetries {
			break
		}
		c.log.Warn("Perplexity request retrying", "attempt", attempt+1, "error", err.Error())
		time.Sleep(jitterSleep(backoff))
		backoff *= 2
	}
	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, "search failed")
		return "", nil, nil, apierr.GenerationRetryable(lastErr)
	}
	span.SetAttributes(
		attribute.Int("llm.tokens.input", resp.Usage.PromptTokens),
		attribute.Int("llm.tokens.output", resp.Usage.CompletionTokens),
		attribute.Int("llm.citations", len(resp.Citations)),
	)
	if len(resp.Choices) == 0 {
		return "", nil, resp.tokenUsage(), apierr.GenerationMalformed("perplexity returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", nil, resp.tokenUsage(), apierr.GenerationMalformed("perplexity returned empty content")
	}
	return content, resp.Citations, resp.tokenUsage(), nil
}

func decodeStrictJSON(raw []byte, out any) error {
	if len(raw) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(raw, out)
}
