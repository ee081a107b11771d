package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kapu/blockext-go/internal/classifier"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

type stubEmbedder struct {
	err   error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return make([][]float64, len(texts)), nil
}

func TestFirstWorkingEmbedderSkipsBrokenBackend(t *testing.T) {
	broken := &stubEmbedder{err: fmt.Errorf("403 forbidden")}
	working := &stubEmbedder{}

	got, err := firstWorkingEmbedder(context.Background(), []classifier.Embedder{broken, working}, zap.NewNop())
	if err != nil {
		t.Fatalf("expected a working backend, got %v", err)
	}
	if got != classifier.Embedder(working) {
		t.Fatalf("expected the second backend to be chosen")
	}
	if broken.calls != 1 || working.calls != 1 {
		t.Fatalf("expected one warmup per backend, got %d/%d", broken.calls, working.calls)
	}
}

func TestFirstWorkingEmbedderAllFail(t *testing.T) {
	_, err := firstWorkingEmbedder(context.Background(), []classifier.Embedder{&stubEmbedder{err: fmt.Errorf("down")}}, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
	if _, err := firstWorkingEmbedder(context.Background(), nil, zap.NewNop()); err == nil {
		t.Fatalf("expected error with no backends")
	}
}

func TestOpenAIEmbedderOrdersAndNormalizes(t *testing.T) {
	var gotDims float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotDims, _ = body["dimensions"].(float64)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[
				{"object":"embedding","index":1,"embedding":[0,2]},
				{"object":"embedding","index":0,"embedding":[3,4]}
			],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	embedder := NewOpenAIEmbedder(&client, 2, zap.NewNop())

	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if gotDims != 2 {
		t.Fatalf("expected dimensions=2 in request, got %v", gotDims)
	}
	if math.Abs(vectors[0][0]-0.6) > 1e-9 || math.Abs(vectors[0][1]-0.8) > 1e-9 {
		t.Fatalf("expected normalized first vector, got %v", vectors[0])
	}
	if vectors[1][0] != 0 || vectors[1][1] != 1 {
		t.Fatalf("expected second vector [0 1], got %v", vectors[1])
	}
}

func TestOpenAIEmbedderRejectsWrongWidth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[1,2,3]}],"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	if _, err := NewOpenAIEmbedder(&client, 2, nil).Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("expected width mismatch error")
	}
}
