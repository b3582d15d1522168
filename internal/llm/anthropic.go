package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

// AnthropicDriver calls the Anthropic Messages API.
type AnthropicDriver struct {
	apiKey   string
	model    string
	endpoint string // defaults to https://api.anthropic.com
	client   *http.Client
}

// NewAnthropicDriver creates an Anthropic model driver.
func NewAnthropicDriver(apiKey, model, endpoint string, timeout time.Duration) *AnthropicDriver {
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	return &AnthropicDriver{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (d *AnthropicDriver) Kind() string { return "anthropic" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// Generate sends the composed prompt to the Messages API.
func (d *AnthropicDriver) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	if d.apiKey == "" {
		return nil, &models.RemoteModelError{Provider: d.Kind(), Err: errNoAPIKey}
	}
	start := time.Now()

	body, _ := json.Marshal(anthropicRequest{
		Model:     d.model,
		System:    req.System,
		Messages:  toChatMessages(req),
		MaxTokens: 1024,
	})

	httpReq, err := http.NewRequestWithContext(ctx, "POST", d.endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr(d.Kind(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", d.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, wrapErr(d.Kind(), err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, statusErr(d.Kind(), httpResp.StatusCode, respBody)
	}

	var anthResp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&anthResp); err != nil {
		return nil, wrapErr(d.Kind(), err)
	}

	text := ""
	for _, c := range anthResp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	if text == "" {
		return nil, wrapErr(d.Kind(), errEmptyReply)
	}

	return &models.GenerateResponse{
		Text:         text,
		Model:        d.model,
		InputTokens:  anthResp.Usage.InputTokens,
		OutputTokens: anthResp.Usage.OutputTokens,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// HealthCheck verifies credentials are present. A live call is left to
// the first real request to avoid burning quota on startup.
func (d *AnthropicDriver) HealthCheck(ctx context.Context) error {
	if d.apiKey == "" {
		return wrapErr(d.Kind(), errNoAPIKey)
	}
	return nil
}
