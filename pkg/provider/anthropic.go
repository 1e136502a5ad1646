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

const anthropicVersion = "2023-06-01"

// anthropicCaller speaks the Anthropic /v1/messages protocol.
type anthropicCaller struct {
	cfg    config.ProviderConfig
	client *http.Client
	rates  costRates
}

func (c *anthropicCaller) Name() string { return c.cfg.Name }

func (c *anthropicCaller) Call(ctx context.Context, req Request) (*Response, error) {
	body, err := rewritePayload(req.Payload, req)
	if err != nil {
		return nil, &Error{Code: CodeInvalidRequest, Message: "build request body", Provider: c.cfg.Name, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: CodeInvalidRequest, Message: "create request", Provider: c.cfg.Name, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

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
		Model string `json:"model"`
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &Error{Code: CodeInvalidResponse, Message: "decode response", Provider: c.cfg.Name, Cause: err}
	}

	out := &Response{Content: respBody, Model: parsed.Model}
	if out.Model == "" {
		out.Model = req.Model
	}
	if parsed.Usage != nil {
		out.Usage = models.Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		}
		out.CostUSD = c.rates.cost(out.Usage)
	}
	return out, nil
}
