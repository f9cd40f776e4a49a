package inference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
)

// fakeRuntime mimics the llama-server endpoints the client uses. Tokenize
// maps each rune to its code point; completion echoes a canned result and
// records the last request body for assertions.
type fakeRuntime struct {
	mu          sync.Mutex
	healthy     bool
	completions int
	lastBody    map[string]any

	content string
	probs   []float64
	failGen bool
}

func (f *fakeRuntime) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		healthy := f.healthy
		f.mu.Unlock()
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading model"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req tokenizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		tokens := make([]int, 0, len(req.Content))
		for _, c := range req.Content {
			tokens = append(tokens, int(c))
		}
		_ = json.NewEncoder(w).Encode(tokenizeResponse{Tokens: tokens})
	})
	mux.HandleFunc("/detokenize", func(w http.ResponseWriter, r *http.Request) {
		var req detokenizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		runes := make([]rune, 0, len(req.Tokens))
		for _, t := range req.Tokens {
			runes = append(runes, rune(t))
		}
		_ = json.NewEncoder(w).Encode(detokenizeResponse{Content: string(runes)})
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.completions++
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastBody = body

		if f.failGen {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"out of memory"}`))
			return
		}

		toks := make([]completionToken, 0, len(f.probs))
		for _, p := range f.probs {
			toks = append(toks, completionToken{
				Content: "x",
				Probs:   []tokenProb{{TokStr: "x", Prob: p}},
			})
		}
		_ = json.NewEncoder(w).Encode(completion{
			Content:                 f.content,
			Stop:                    true,
			TokensPredicted:         len(f.probs),
			CompletionProbabilities: toks,
		})
	})
	return mux
}

func newFakeRuntime(t *testing.T) (*fakeRuntime, *httptest.Server) {
	t.Helper()
	f := &fakeRuntime{
		healthy: true,
		content: "generated text",
		probs:   []float64{0.9, 0.5},
	}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv
}

func TestClientTokenizeDetokenize(t *testing.T) {
	t.Parallel()
	_, srv := newFakeRuntime(t)
	client := NewClient(srv.URL)
	ctx := context.Background()

	tokens, err := client.Tokenize(ctx, "hi")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("tokens = %v", tokens)
	}

	text, err := client.Detokenize(ctx, tokens)
	if err != nil {
		t.Fatalf("detokenize: %v", err)
	}
	if text != "hi" {
		t.Fatalf("round trip = %q", text)
	}
}

func TestClientCompleteParamPassthrough(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRuntime(t)
	client := NewClient(srv.URL)

	params := Params{
		"max_tokens":  float64(32),
		"temperature": 0.7,
		"mirostat":    float64(2), // unknown to the shim, forwarded verbatim
		"n_probs":     float64(50),
		"prompt":      "must not override",
	}
	if _, err := client.Complete(context.Background(), []int{1, 2, 3}, params); err != nil {
		t.Fatalf("complete: %v", err)
	}

	f.mu.Lock()
	body := f.lastBody
	f.mu.Unlock()

	if body["n_predict"] != float64(32) {
		t.Errorf("max_tokens not normalized to n_predict: %v", body["n_predict"])
	}
	if body["temperature"] != 0.7 {
		t.Errorf("temperature not forwarded: %v", body["temperature"])
	}
	if body["mirostat"] != float64(2) {
		t.Errorf("unknown key not forwarded: %v", body["mirostat"])
	}
	if body["n_probs"] != float64(1) {
		t.Errorf("n_probs must stay client-owned, got %v", body["n_probs"])
	}
	if _, ok := body["prompt"].([]any); !ok {
		t.Errorf("prompt was overridden by params: %v", body["prompt"])
	}
	if _, ok := body["max_tokens"]; ok {
		t.Error("max_tokens alias leaked into runtime request")
	}
}

func TestClientCompleteRuntimeError(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRuntime(t)
	f.failGen = true
	client := NewClient(srv.URL)

	_, err := client.Complete(context.Background(), []int{1}, nil)
	if err == nil {
		t.Fatal("expected runtime error")
	}
}

func TestClientHealth(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRuntime(t)
	client := NewClient(srv.URL)
	ctx := context.Background()

	if err := client.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}

	f.mu.Lock()
	f.healthy = false
	f.mu.Unlock()
	if err := client.Health(ctx); err == nil {
		t.Fatal("expected health error while loading")
	}
}
