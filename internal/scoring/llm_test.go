package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatReply wraps content in a chat completion response body.
func chatReply(content string) string {
	b, _ := json.Marshal(ChatResponse{Choices: []ChatChoice{{
		FinishReason: "stop",
		Message:      Message{Role: "assistant", Content: content},
	}}})
	return string(b)
}

// setupMockAPIServer answers with the given statuses in order, repeating the
// last one, and records every request body.
func setupMockAPIServer(t *testing.T, statuses []int, body string, requests *[]ChatRequest) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1

		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected Content-Type: application/json, got %s", ct)
		}

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("Error reading request body: %v", err)
		}
		var req ChatRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("Invalid JSON in request body: %v", err)
		}
		if requests != nil {
			*requests = append(*requests, req)
		}

		status := statuses[len(statuses)-1]
		if n < len(statuses) {
			status = statuses[n]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(body))
		} else {
			w.Write([]byte(`{"error":"try later"}`))
		}
	}))

	t.Cleanup(func() {
		server.Close()
	})

	return server, &calls
}

func testLLMConfig(endpoint string) LLMConfig {
	return LLMConfig{
		Endpoint:   endpoint,
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Timeout:    5 * time.Second,
	}
}

func TestNewLLMClassifier(t *testing.T) {
	_, err := NewLLMClassifier(LLMConfig{}, nil, nil)
	assert.Error(t, err)

	c, err := NewLLMClassifier(LLMConfig{Endpoint: "http://localhost:8080/v1/chat/completions"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, c.cfg.SystemPrompt)
	assert.Equal(t, 4000, c.cfg.MaxTextChars)
}

func TestLLMClassifierClassify(t *testing.T) {
	var requests []ChatRequest
	reply := chatReply("```json\n{\"score\": 0.82, \"rationale\": \"Lists application deadlines\", \"quotes\": [\"Apply by January 5\"]}\n```")
	server, calls := setupMockAPIServer(t, []int{http.StatusOK}, reply, &requests)

	cfg := testLLMConfig(server.URL)
	cfg.APIKey = "secret"
	cfg.Model = "gpt-4o-mini"
	cfg.ReasoningEffort = "low"
	cfg.MaxTextChars = 10
	c, err := NewLLMClassifier(cfg, server.Client(), nil)
	require.NoError(t, err)

	sub := admissionSubsection()
	sub.Definition = "Dates by which applications are due"
	got, err := c.Classify(context.Background(), "Apply by January 5 for fall admission", sub)
	require.NoError(t, err)

	assert.InDelta(t, 0.82, got.Score, 1e-9)
	assert.Equal(t, "Lists application deadlines", got.Rationale)
	assert.Equal(t, []string{"Apply by January 5"}, got.Quotes)
	assert.EqualValues(t, 1, calls.Load())

	require.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, "low", req.ReasoningEffort)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "Subsection: Deadlines")
	assert.Contains(t, req.Messages[1].Content, "Definition: Dates by which applications are due")
	assert.True(t, strings.HasSuffix(req.Messages[1].Content, "Apply by J"))
}

func TestLLMClassifierRetries(t *testing.T) {
	testCases := []struct {
		name          string
		statuses      []int
		expectedCalls int32
		expectError   bool
	}{
		{"Recovers after server errors", []int{500, 503, 200}, 3, false},
		{"Retries rate limiting", []int{429, 200}, 2, false},
		{"Gives up after max retries", []int{500}, 3, true},
		{"Does not retry client errors", []int{400}, 1, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server, calls := setupMockAPIServer(t, tc.statuses, chatReply(`{"score": 0.5}`), nil)
			c, err := NewLLMClassifier(testLLMConfig(server.URL), server.Client(), nil)
			require.NoError(t, err)

			got, err := c.Classify(context.Background(), "text", admissionSubsection())
			assert.Equal(t, tc.expectedCalls, calls.Load())
			if tc.expectError {
				assert.ErrorIs(t, err, ErrClassifierUnavailable)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, 0.5, got.Score, 1e-9)
		})
	}
}

func TestLLMClassifierCancelledDuringBackoff(t *testing.T) {
	server, _ := setupMockAPIServer(t, []int{500}, "", nil)
	cfg := testLLMConfig(server.URL)
	cfg.BaseDelay = time.Hour
	c, err := NewLLMClassifier(cfg, server.Client(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Classify(ctx, "text", admissionSubsection())
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
}

func TestParseClassification(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected float64
		wantErr  bool
	}{
		{"Plain JSON", `{"score": 0.4, "rationale": "ok"}`, 0.4, false},
		{"Prose around JSON", `Here you go: {"score": 1} Thanks!`, 1, false},
		{"Score clamped", `{"score": 3}`, 1, false},
		{"Missing score", `{"rationale": "none"}`, 0, true},
		{"No JSON", `I cannot decide`, 0, true},
		{"Broken JSON", `{"score": }`, 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseClassification(tc.content)
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrClassifierUnavailable))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, got.Score, 1e-9)
		})
	}
}

func TestLLMClassifierWithScorerFallback(t *testing.T) {
	server, _ := setupMockAPIServer(t, []int{http.StatusBadGateway}, "", nil)
	c, err := NewLLMClassifier(testLLMConfig(server.URL), server.Client(), nil)
	require.NoError(t, err)

	s := NewClassifierScorer(c, nil, nil)
	got := s.Score(context.Background(), page("u", "admission deadline"), admissionSubsection())
	assert.Equal(t, "keyword", string(got.Mode))
	assert.Greater(t, got.Score, 0.0)
}
