package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

// fakeProvider answers /embeddings with the vectors produced by vecFor, in the order given by order.
type fakeProvider struct {
	t      *testing.T
	vecFor func(text string) []float32
	order  func(n int) []int
	tokens int
	got    map[string]any
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/embeddings" || r.Header.Get("Authorization") != "Bearer sk-test" {
		f.t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		f.t.Errorf("read request: %v", err)
	}
	var req struct {
		Input []string `json:"input"`
	}
	_ = json.Unmarshal(raw, &req)
	_ = json.Unmarshal(raw, &f.got)

	idx := make([]int, len(req.Input))
	for i := range idx {
		idx[i] = i
	}
	if f.order != nil {
		idx = f.order(len(req.Input))
	}
	resp := openai.EmbeddingResponse{Object: "list", Usage: openai.Usage{PromptTokens: f.tokens, TotalTokens: f.tokens}}
	for _, i := range idx {
		resp.Data = append(resp.Data, openai.Embedding{Object: "embedding", Embedding: f.vecFor(req.Input[i]), Index: i})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestEmbedder(t *testing.T, h http.Handler, provider string, dims int) *Embedder {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewEmbedder(&Config{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "text-embedding-3-small",
		Dimensions: dims,
		User:       "promptdex",
		Provider:   provider,
		Logger:     zap.NewNop(),
	})
}

// vecByText gives every prompt a distinct one-hot vector.
func vecByText(texts ...string) func(string) []float32 {
	return func(s string) []float32 {
		v := make([]float32, len(texts))
		for i, t := range texts {
			if t == s {
				v[i] = 1
			}
		}
		return v
	}
}

func TestEmbed_RequestShapeAndUsage(t *testing.T) {
	p := &fakeProvider{t: t, vecFor: vecByText("summarize meeting notes", "b", "c", "d"), tokens: 12}
	e := newTestEmbedder(t, p, "shape", 4)

	res, err := e.Embed(context.Background(), "summarize meeting notes")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if res.Embedding[0] != 1 || len(res.Embedding) != 4 {
		t.Errorf("vector = %v", res.Embedding)
	}
	if res.PromptTokens != 12 || res.TotalTokens != 12 {
		t.Errorf("usage = %d/%d, want 12/12", res.PromptTokens, res.TotalTokens)
	}
	if p.got["model"] != "text-embedding-3-small" || p.got["encoding_format"] != "float" ||
		p.got["dimensions"] != float64(4) || p.got["user"] != "promptdex" {
		t.Errorf("request = %v", p.got)
	}
	if e.Model() != "text-embedding-3-small" {
		t.Errorf("Model() = %q", e.Model())
	}
}

func TestBatchEmbed_RestoresInputOrder(t *testing.T) {
	prompts := []string{"draft email", "translate to french", "classify ticket"}
	p := &fakeProvider{
		t:      t,
		vecFor: vecByText(prompts...),
		order:  func(n int) []int { return []int{2, 0, 1}[:n] },
		tokens: 30,
	}
	e := newTestEmbedder(t, p, "order", 3)

	res, err := e.BatchEmbed(context.Background(), prompts)
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	for i, vec := range res.Embeddings {
		if vec[i] != 1 {
			t.Errorf("embedding %d belongs to another prompt: %v", i, vec)
		}
	}
	if res.TotalTokens != 30 {
		t.Errorf("TotalTokens = %d", res.TotalTokens)
	}
}

func TestBatchEmbed_EmptySkipsProvider(t *testing.T) {
	e := newTestEmbedder(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("provider must not be called")
	}), "empty", 0)

	res, err := e.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil {
		t.Errorf("BatchEmbed(nil) = %+v, %v", res, err)
	}
}

func TestEmbed_MalformedResponsesAreProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		dims      int
		texts     []string
		p         *fakeProvider
		errorType string
	}{
		{
			name: "dimension mismatch", provider: "bad-dims", dims: 4, texts: []string{"a"},
			p:         &fakeProvider{vecFor: vecByText("a", "b", "c")},
			errorType: "dimension_mismatch",
		},
		{
			name: "duplicate index", provider: "bad-index", texts: []string{"a", "b"},
			p:         &fakeProvider{vecFor: vecByText("a", "b"), order: func(int) []int { return []int{0, 0} }},
			errorType: "bad_index",
		},
		{
			name: "missing vector", provider: "bad-count", texts: []string{"a", "b"},
			p:         &fakeProvider{vecFor: vecByText("a", "b"), order: func(int) []int { return []int{1} }},
			errorType: "count_mismatch",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.p.t = t
			e := newTestEmbedder(t, tc.p, tc.provider, tc.dims)

			_, err := e.BatchEmbed(context.Background(), tc.texts)
			if !errors.Is(err, domain.ErrEmbeddingProviderError) {
				t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
			}
			counter := metrics.EmbeddingErrorsTotal.WithLabelValues(tc.provider, "text-embedding-3-small", tc.errorType)
			if got := testutil.ToFloat64(counter); got != 1 {
				t.Errorf("%s errors = %v, want 1", tc.errorType, got)
			}
		})
	}
}

func TestEmbed_ProviderStatusMapsToDegradationKind(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		detail string
	}{
		{"rate limited", http.StatusTooManyRequests,
			`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`,
			domain.ErrEmbeddingQuotaExceeded, "exceeded your current quota"},
		{"server error", http.StatusInternalServerError,
			`{"error":{"message":"upstream overloaded","type":"server_error"}}`,
			domain.ErrEmbeddingProviderError, "upstream overloaded"},
		{"nebius detail", http.StatusNotFound,
			`{"detail":"Model text-embedding-3-small not found"}`,
			domain.ErrEmbeddingProviderError, "not found"},
		{"plain body", http.StatusBadGateway, `bad gateway`, domain.ErrEmbeddingProviderError, "bad gateway"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEmbedder(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}), "status", 0)

			_, err := e.Embed(context.Background(), "q")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !domain.IsSourceUnavailable(err) {
				t.Error("provider failures must degrade the semantic branch")
			}
			if !strings.Contains(err.Error(), tc.detail) {
				t.Errorf("error %q lacks provider detail %q", err, tc.detail)
			}
		})
	}
}

func TestEmbed_UnreachableProvider(t *testing.T) {
	e := NewEmbedder(&Config{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1", Model: "m", Logger: zap.NewNop()})

	_, err := e.Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}
