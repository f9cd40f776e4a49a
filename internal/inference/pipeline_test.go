package inference

import (
	"context"
	"testing"
	"time"
)

func TestLoaderAttach(t *testing.T) {
	t.Parallel()
	_, srv := newFakeRuntime(t)

	loader := Loader{RuntimeURL: srv.URL, StartupTimeout: 5 * time.Second}
	pipe, err := loader.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer pipe.Close()

	if pipe.Model == nil || pipe.Tokenizer == nil {
		t.Fatal("pipeline pair not initialized")
	}
}

func TestLoaderAttachNotReady(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRuntime(t)
	f.mu.Lock()
	f.healthy = false
	f.mu.Unlock()

	loader := Loader{RuntimeURL: srv.URL, StartupTimeout: 600 * time.Millisecond}
	if _, err := loader.Load(context.Background(), ""); err == nil {
		t.Fatal("expected load failure against unready runtime")
	}
}

func TestLoaderSpawnMissingModel(t *testing.T) {
	t.Parallel()
	loader := Loader{RuntimeBin: "llama-server"}
	if _, err := loader.Load(context.Background(), "/does/not/exist.gguf"); err == nil {
		t.Fatal("expected error for missing checkpoint")
	}
}

func TestLoaderSpawnMissingModelPath(t *testing.T) {
	t.Parallel()
	loader := Loader{}
	if _, err := loader.Load(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

func TestPipelineGenerate(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRuntime(t)
	f.content = "once upon a time"
	f.probs = []float64{0.123456, 0.9, 0.42}

	loader := Loader{RuntimeURL: srv.URL, StartupTimeout: 5 * time.Second}
	pipe, err := loader.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer pipe.Close()

	res, err := pipe.Generate(context.Background(), []string{"hello"}, Params{"max_tokens": 3})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(res.Texts) != 1 || res.Texts[0] != "once upon a time" {
		t.Fatalf("texts = %v", res.Texts)
	}
	if len(res.Scores) != 3 {
		t.Fatalf("scores = %v", res.Scores)
	}
	if res.Scores[0] != 0.123456 {
		t.Fatalf("scores[0] = %v, want raw runtime value", res.Scores[0])
	}
}

func TestPipelineGenerateBatch(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRuntime(t)
	f.probs = []float64{0.5}

	loader := Loader{RuntimeURL: srv.URL, StartupTimeout: 5 * time.Second}
	pipe, err := loader.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer pipe.Close()

	res, err := pipe.Generate(context.Background(), []string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(res.Texts) != 2 {
		t.Fatalf("texts = %v", res.Texts)
	}
	if len(res.Scores) != 2 {
		t.Fatalf("scores = %v, want one per prompt per token", res.Scores)
	}
}

func TestPipelineGenerateEmptyPrompts(t *testing.T) {
	t.Parallel()
	_, srv := newFakeRuntime(t)

	loader := Loader{RuntimeURL: srv.URL, StartupTimeout: 5 * time.Second}
	pipe, err := loader.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer pipe.Close()

	if _, err := pipe.Generate(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for empty prompt batch")
	}
}

func TestPipelineGenerateRuntimeFailure(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRuntime(t)

	loader := Loader{RuntimeURL: srv.URL, StartupTimeout: 5 * time.Second}
	pipe, err := loader.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer pipe.Close()

	f.mu.Lock()
	f.failGen = true
	f.mu.Unlock()
	if _, err := pipe.Generate(context.Background(), []string{"x"}, nil); err == nil {
		t.Fatal("expected generation failure to propagate")
	}

	// The pair stays usable after a failed request.
	f.mu.Lock()
	f.failGen = false
	f.mu.Unlock()
	if _, err := pipe.Generate(context.Background(), []string{"x"}, nil); err != nil {
		t.Fatalf("generate after failure: %v", err)
	}
}
