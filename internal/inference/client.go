package inference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// Client speaks the llama-server native HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Generation runs to completion before a response is produced,
		// so the client itself imposes no per-request deadline.
		httpClient: &http.Client{},
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Health reports whether the runtime has finished loading the model.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runtime not ready: %s", resp.Status)
	}
	return nil
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

func (c *Client) Tokenize(ctx context.Context, content string) ([]int, error) {
	var out tokenizeResponse
	if err := c.post(ctx, "/tokenize", tokenizeRequest{Content: content}, &out); err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	return out.Tokens, nil
}

type detokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

type detokenizeResponse struct {
	Content string `json:"content"`
}

func (c *Client) Detokenize(ctx context.Context, tokens []int) (string, error) {
	var out detokenizeResponse
	if err := c.post(ctx, "/detokenize", detokenizeRequest{Tokens: tokens}, &out); err != nil {
		return "", fmt.Errorf("detokenize: %w", err)
	}
	return out.Content, nil
}

type tokenProb struct {
	TokStr string  `json:"tok_str"`
	Prob   float64 `json:"prob"`
}

type completionToken struct {
	Content string      `json:"content"`
	Probs   []tokenProb `json:"probs"`
}

type completion struct {
	Content                 string            `json:"content"`
	Stop                    bool              `json:"stop"`
	TokensPredicted         int               `json:"tokens_predicted"`
	CompletionProbabilities []completionToken `json:"completion_probabilities"`
}

// Complete runs one generation pass over an already-tokenized prompt.
// Params are merged into the request body after alias normalization;
// per-token probability reporting is always requested so the caller gets
// one score per generated token.
func (c *Client) Complete(ctx context.Context, promptTokens []int, params Params) (*completion, error) {
	body := map[string]any{
		"prompt":       promptTokens,
		"n_probs":      1,
		"cache_prompt": false,
	}
	for k, v := range params {
		switch k {
		case "prompt", "n_probs":
			// Owned by this client.
		case "max_tokens", "max_new_tokens":
			body["n_predict"] = v
		default:
			body[k] = v
		}
	}

	var out completion
	if err := c.post(ctx, "/completion", body, &out); err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("runtime: %s", msg)
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode runtime response: %w", err)
	}
	return nil
}

func (c *Client) closeIdle() {
	c.httpClient.CloseIdleConnections()
}
