package api

import "github.com/llamad-dev/llamad/internal/diag"

// GenerateRequest is the accepted input shape of POST /generate. Both
// fields are validated before the inference function runs; see decode.go.
type GenerateRequest struct {
	Prompt           string         `json:"prompt"`
	GenerationParams map[string]any `json:"generation_params"`
}

// GenerateResults carries the generated text per prompt and one rounded
// score per generated token.
type GenerateResults struct {
	Text   []string  `json:"text"`
	Logits []float64 `json:"logits"`
}

// GenerateResponse is the success envelope.
type GenerateResponse struct {
	Error   bool            `json:"error"`
	Results GenerateResults `json:"results"`
}

// ErrorResponse is the error envelope. Error is always true.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// AboutResponse is the diagnostic payload of GET /about.
type AboutResponse struct {
	Env    string `json:"env"`
	Device string `json:"device"`
	diag.Report
}
