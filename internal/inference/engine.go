// Package inference owns the boundary to the external ML runtime: loading
// a model/tokenizer pair at startup and running generation passes against
// it. The model itself lives in a llama-server process; this package only
// speaks its HTTP API.
package inference

import "context"

// Params are generation parameters forwarded to the runtime. A few common
// aliases are normalized to the runtime's native names; every other key is
// passed through verbatim and interpreted by the runtime alone.
type Params map[string]any

// Result is one inference pass over a batch of prompts: one text per
// prompt, and one score per generated token in prompt order. Score
// granularity is whatever the runtime reports; it is not redefined here.
type Result struct {
	Texts  []string
	Scores []float64
}

// Engine runs text generation against a loaded model/tokenizer pair.
type Engine interface {
	Generate(ctx context.Context, prompts []string, params Params) (*Result, error)
	Close() error
}
