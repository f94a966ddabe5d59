package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testFactoryConfig(apiURL string) Config {
	return Config{
		Backend: "openai",
		OpenAI: OpenAIConfig{
			Model:     "gpt-3.5-turbo",
			APIKeyRef: testSecretRef(),
			APIURL:    apiURL,
		},
		CircuitBreaker: CircuitBreakerConfig{
			ConsecutiveFailures: 5,
			OpenDuration:        10 * time.Minute,
		},
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := Config{Backend: "gemini"}
	_, err := New(context.Background(), cfg, newMockSecretReader("key"), testLogger())
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), `unknown backend "gemini"`) {
		t.Errorf("error = %q, want it to name the backend", err.Error())
	}
}

func TestNew_NilLogger(t *testing.T) {
	_, err := New(context.Background(), testFactoryConfig(""), newMockSecretReader("key"), nil)
	if err == nil || !strings.Contains(err.Error(), "logger must not be nil") {
		t.Errorf("error = %v, want nil logger validation error", err)
	}
}

func TestNew_BackendConfigError(t *testing.T) {
	cfg := testFactoryConfig("")
	cfg.OpenAI.Model = ""
	_, err := New(context.Background(), cfg, newMockSecretReader("key"), testLogger())
	if err == nil || !strings.Contains(err.Error(), "model must not be empty") {
		t.Errorf("error = %v, want backend validation error to propagate", err)
	}
}

func TestNew_OpenAIBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: `{"answer": "5 pods"}`}},
			},
			Usage: openAIUsage{PromptTokens: 300, CompletionTokens: 50},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := New(context.Background(), testFactoryConfig(server.URL), newMockSecretReader("key"), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", client.Name())
	}

	completion, err := client.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completion.Text != `{"answer": "5 pods"}` {
		t.Errorf("Text = %q", completion.Text)
	}
}

// The assembled client opens its circuit after repeated backend failures and
// then rejects requests without calling the backend.
func TestNew_WrapperComposition_CircuitOpens(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testFactoryConfig(server.URL)
	cfg.CircuitBreaker = CircuitBreakerConfig{ConsecutiveFailures: 2, OpenDuration: 10 * time.Minute}

	client, err := New(context.Background(), cfg, newMockSecretReader("key"), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err := client.Complete(context.Background(), testRequest())
		if err == nil || !strings.Contains(err.Error(), "status 500") {
			t.Fatalf("call %d: error = %v, want status 500 error", i+1, err)
		}
	}

	_, err = client.Complete(context.Background(), testRequest())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if requests != 2 {
		t.Errorf("backend received %d requests, want 2", requests)
	}
}

// The assembled client enforces token budgets across calls.
func TestNew_WrapperComposition_BudgetLimits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: "ok"}},
			},
			Usage: openAIUsage{PromptTokens: 400, CompletionTokens: 200},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cfg := testFactoryConfig(server.URL)
	cfg.RateLimiter = RateLimiterConfig{DailyTokenBudget: 500}

	client, err := New(context.Background(), cfg, newMockSecretReader("key"), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// First call succeeds and records 600 tokens, exceeding the budget.
	if _, err := client.Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("call 1: unexpected error %v", err)
	}

	_, err = client.Complete(context.Background(), testRequest())
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("error = %v, want ErrBudgetExhausted", err)
	}
}
