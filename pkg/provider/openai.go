package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/fanout-ai/fanout/pkg/config"
	"github.com/fanout-ai/fanout/pkg/models"
)

// openaiCaller speaks the OpenAI-compatible chat completion protocol, which
// also covers Moonshot, Ollama and most self-hosted gateways.
type openaiCaller struct {
	cfg    config.ProviderConfig
	client *http.Client
	rates  costRates
}

func (c *openaiCaller) Name() string { return c.cfg.Name }

func (c *openaiCaller) Call(ctx context.Context, req Request) (*Response, error) {
	body, err := rewritePayload(req.Payload, req)
	if err != nil {
		return nil, &Error{Code: CodeInvalidRequest, Message: "build request body", Provider: c.cfg.Name, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: CodeInvalidRequest, Message: "create request", Provider: c.cfg.Name, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errFromTransport(c.cfg.Name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errFromTransport(c.cfg.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errFromStatus(c.cfg.Name, resp.StatusCode, respBody)
	}

	var parsed struct {
		Model string        `json:"model"`
		Usage *models.Usage `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &Error{Code: CodeInvalidResponse, Message: "decode response", Provider: c.cfg.Name, Cause: err}
	}

	out := &Response{Content: respBody, Model: parsed.Model}
	if out.Model == "" {
		out.Model = req.Model
	}
	if parsed.Usage != nil {
		out.Usage = *parsed.Usage
		out.CostUSD = c.rates.cost(out.Usage)
	}
	return out, nil
}
