package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/go-scripts/sectioncrawl/internal/catalog"
)

// DefaultSystemPrompt asks for a strict JSON verdict.
const DefaultSystemPrompt = `You decide whether web page text is evidence for one subsection of an organization's profile.
Reply with a single JSON object and nothing else:
{"score": <number from 0 to 1>, "rationale": "<one sentence>", "quotes": ["<up to 3 short verbatim quotes>"]}
Use 0 when the text says nothing about the subsection and 1 when it is clearly about it.`

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is an OpenAI-compatible chat completion request, as served by
// llama-server and hosted APIs alike.
type ChatRequest struct {
	Model           string    `json:"model,omitempty"`
	Messages        []Message `json:"messages"`
	Stream          bool      `json:"stream"`
	Temperature     float64   `json:"temperature"`
	ReasoningEffort string    `json:"reasoning_effort,omitempty"`
}

// ChatChoice is one completion choice.
type ChatChoice struct {
	FinishReason string  `json:"finish_reason"`
	Index        int     `json:"index"`
	Message      Message `json:"message"`
}

// ChatResponse is the subset of the completion response we read.
type ChatResponse struct {
	Choices []ChatChoice `json:"choices"`
}

// LLMConfig configures LLMClassifier.
type LLMConfig struct {
	Endpoint        string
	APIKey          string
	Model           string
	SystemPrompt    string
	Temperature     float64
	ReasoningEffort string
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries        int
	BaseDelay         time.Duration
	RequestsPerMinute int
	// MaxTextChars truncates page text before it is sent.
	MaxTextChars int
	Timeout      time.Duration
}

// LLMClassifier asks a chat completion endpoint for a relevance verdict.
type LLMClassifier struct {
	client  *http.Client
	cfg     LLMConfig
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewLLMClassifier validates cfg and fills defaults.
func NewLLMClassifier(cfg LLMConfig, client *http.Client, logger *log.Logger) (*LLMClassifier, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("classifier endpoint is required")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 4000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
		burst = cfg.RequestsPerMinute
	}

	return &LLMClassifier{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  orDiscard(logger),
	}, nil
}

// Classify sends one request, retrying transient failures with exponential
// backoff and jitter.
func (c *LLMClassifier) Classify(ctx context.Context, text string, sub *catalog.Subsection) (Classification, error) {
	body, err := json.Marshal(c.buildRequest(text, sub))
	if err != nil {
		return Classification{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.BaseDelay * time.Duration(1<<uint(attempt-1))
			delay += time.Duration(rand.Int64N(int64(delay)/2 + 1))
			c.logger.Debug("Backing off before retry", "subsection", sub.ID(), "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return Classification{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return Classification{}, fmt.Errorf("%w: rate limiter: %v", ErrClassifierUnavailable, err)
		}

		content, retry, err := c.send(ctx, body)
		if err == nil {
			return parseClassification(content)
		}
		lastErr = err
		c.logger.Debug("Classifier request failed", "subsection", sub.ID(), "attempt", attempt, "error", err)
		if !retry {
			break
		}
	}

	return Classification{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, lastErr)
}

func (c *LLMClassifier) buildRequest(text string, sub *catalog.Subsection) *ChatRequest {
	if r := []rune(text); len(r) > c.cfg.MaxTextChars {
		text = string(r[:c.cfg.MaxTextChars])
	}

	var query strings.Builder
	fmt.Fprintf(&query, "Section: %s\n", sub.Section)
	fmt.Fprintf(&query, "Subsection: %s\n", sub.Name)
	if sub.Definition != "" {
		fmt.Fprintf(&query, "Definition: %s\n", sub.Definition)
	}
	query.WriteString("\nText:\n")
	query.WriteString(text)

	return &ChatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: query.String()},
		},
		Stream:          false,
		Temperature:     c.cfg.Temperature,
		ReasoningEffort: c.cfg.ReasoningEffort,
	}
}

// send returns the first choice's content. retry reports whether the failure
// is worth another attempt.
func (c *LLMClassifier) send(ctx context.Context, body []byte) (content string, retry bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var chat ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", true, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", true, errors.New("response has no choices")
	}
	return chat.Choices[0].Message.Content, false, nil
}

type verdict struct {
	Score     *float64 `json:"score"`
	Rationale string   `json:"rationale"`
	Quotes    []string `json:"quotes"`
}

// parseClassification reads the JSON verdict out of a model reply. Code
// fences and prose around the object are tolerated.
func parseClassification(content string) (Classification, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return Classification{}, fmt.Errorf("%w: no JSON object in reply", ErrClassifierUnavailable)
	}

	var v verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return Classification{}, fmt.Errorf("%w: invalid verdict: %v", ErrClassifierUnavailable, err)
	}
	if v.Score == nil {
		return Classification{}, fmt.Errorf("%w: verdict has no score", ErrClassifierUnavailable)
	}

	return Classification{
		Score:     Clamp(*v.Score),
		Rationale: strings.TrimSpace(v.Rationale),
		Quotes:    v.Quotes,
	}, nil
}
