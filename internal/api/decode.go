package api

import (
	"io"

	json "github.com/goccy/go-json"
)

// rawGenerateRequest defers field decoding so type mismatches can be
// reported per field instead of as a single opaque unmarshal error.
type rawGenerateRequest struct {
	Prompt           json.RawMessage `json:"prompt"`
	GenerationParams json.RawMessage `json:"generation_params"`
}

// decodeGenerateRequest validates the request shape: prompt is a required,
// non-empty JSON string; generation_params, when present, is a JSON object.
// Any violation is a validation error and the engine is never consulted.
func decodeGenerateRequest(r io.Reader) (*GenerateRequest, *Error) {
	var raw rawGenerateRequest
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, newValidationError("request body must be a JSON object")
	}

	if len(raw.Prompt) == 0 || string(raw.Prompt) == "null" {
		return nil, newValidationError("prompt is required")
	}
	var req GenerateRequest
	if err := json.Unmarshal(raw.Prompt, &req.Prompt); err != nil {
		return nil, newValidationError("prompt must be a string")
	}
	if req.Prompt == "" {
		return nil, newValidationError("prompt must not be empty")
	}

	if len(raw.GenerationParams) > 0 && string(raw.GenerationParams) != "null" {
		if err := json.Unmarshal(raw.GenerationParams, &req.GenerationParams); err != nil {
			return nil, newValidationError("generation_params must be an object")
		}
	}

	return &req, nil
}
