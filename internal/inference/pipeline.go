package inference

import (
	"context"
	"fmt"
	"os/exec"
)

// Model is the generation half of the loaded pair.
type Model struct {
	client *Client
}

// Complete generates a continuation for one tokenized prompt.
func (m *Model) Complete(ctx context.Context, promptTokens []int, params Params) (*completion, error) {
	return m.client.Complete(ctx, promptTokens, params)
}

// Tokenizer is the text/token half of the loaded pair.
type Tokenizer struct {
	client *Client
}

func (t *Tokenizer) Encode(ctx context.Context, text string) ([]int, error) {
	return t.client.Tokenize(ctx, text)
}

func (t *Tokenizer) Decode(ctx context.Context, tokens []int) (string, error) {
	return t.client.Detokenize(ctx, tokens)
}

// Pipeline is the loaded (model, tokenizer) pair. It is created once at
// startup, shared read-only by every request, and released only at process
// teardown.
type Pipeline struct {
	Model     *Model
	Tokenizer *Tokenizer

	client *Client
	proc   *exec.Cmd  // nil when attached to an external runtime
	waited chan error // carries the spawned runtime's exit status
}

var _ Engine = (*Pipeline)(nil)

// Generate tokenizes each prompt with the bound tokenizer, runs the model's
// generation procedure under the supplied parameters, and collects the
// generated text plus one score per generated token. Failures inside the
// runtime propagate unrecovered; there is no retry and no partial result.
func (p *Pipeline) Generate(ctx context.Context, prompts []string, params Params) (*Result, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompts must not be empty")
	}

	res := &Result{
		Texts: make([]string, 0, len(prompts)),
	}
	for _, prompt := range prompts {
		tokens, err := p.Tokenizer.Encode(ctx, prompt)
		if err != nil {
			return nil, err
		}
		comp, err := p.Model.Complete(ctx, tokens, params)
		if err != nil {
			return nil, err
		}
		res.Texts = append(res.Texts, comp.Content)
		for _, tok := range comp.CompletionProbabilities {
			if len(tok.Probs) == 0 {
				continue
			}
			res.Scores = append(res.Scores, tok.Probs[0].Prob)
		}
	}
	return res, nil
}

// Close releases the runtime. For a spawned runtime the process is killed
// and reaped; in attach mode only idle connections are dropped.
func (p *Pipeline) Close() error {
	p.client.closeIdle()
	if p.proc == nil || p.proc.Process == nil {
		return nil
	}
	// Kill may fail if the runtime already exited; reaping below still
	// collects the status either way.
	_ = p.proc.Process.Kill()
	if p.waited != nil {
		<-p.waited
	}
	return nil
}
