// Package provider implements the narrow call interface the dispatch engine
// consumes: given an opaque request payload and generation parameters, a
// Caller returns a response payload with usage and cost metadata, or a typed
// error that distinguishes transient from permanent failures.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fanout-ai/fanout/pkg/config"
	"github.com/fanout-ai/fanout/pkg/models"
)

// Request carries one provider call. Payload is an opaque JSON object in the
// provider's native format; the caller only rewrites model and generation
// parameters into it.
type Request struct {
	Model       string
	Payload     json.RawMessage
	Temperature *float64
	MaxTokens   *int
}

// Response is a successful provider result. Content is the raw response
// body, opaque to the engine.
type Response struct {
	Content []byte
	Model   string
	Usage   models.Usage
	CostUSD float64
}

// Caller is the provider call interface consumed by the executor.
type Caller interface {
	// Name returns the configured provider name.
	Name() string
	// Call performs one request. Errors are *Error values.
	Call(ctx context.Context, req Request) (*Response, error)
}

// Default per-1M-token costs by provider type, used when the provider
// config leaves costs unset.
var defaultCosts = map[string]costRates{
	"anthropic": {input: 3.0, output: 15.0},
	"openai":    {input: 1.0, output: 5.0},
}

type costRates struct {
	input  float64
	output float64
}

func (c costRates) cost(u models.Usage) float64 {
	return float64(u.PromptTokens)/1e6*c.input + float64(u.CompletionTokens)/1e6*c.output
}

func ratesFor(cfg config.ProviderConfig) costRates {
	rates, ok := defaultCosts[cfg.Type]
	if !ok {
		rates = defaultCosts["openai"]
	}
	if cfg.InputCostPer1M > 0 {
		rates.input = cfg.InputCostPer1M
	}
	if cfg.OutputCostPer1M > 0 {
		rates.output = cfg.OutputCostPer1M
	}
	return rates
}

const defaultCallTimeout = 60 * time.Second

// New builds a Caller for the given provider configuration.
func New(cfg config.ProviderConfig) (Caller, error) {
	client := &http.Client{Timeout: defaultCallTimeout}
	switch cfg.Type {
	case "", "openai":
		return &openaiCaller{cfg: cfg, client: client, rates: ratesFor(cfg)}, nil
	case "anthropic":
		return &anthropicCaller{cfg: cfg, client: client, rates: ratesFor(cfg)}, nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// rewritePayload sets the model and generation parameters in a JSON payload,
// leaving everything else untouched.
func rewritePayload(payload json.RawMessage, req Request) ([]byte, error) {
	raw := map[string]json.RawMessage{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("payload is not a JSON object: %w", err)
		}
	}

	set := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw[key] = b
		return nil
	}

	if err := set("model", req.Model); err != nil {
		return nil, err
	}
	if req.Temperature != nil {
		if err := set("temperature", *req.Temperature); err != nil {
			return nil, err
		}
	}
	if req.MaxTokens != nil {
		if err := set("max_tokens", *req.MaxTokens); err != nil {
			return nil, err
		}
	}
	return json.Marshal(raw)
}
