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

// OllamaDriver calls a local Ollama install through its OpenAI-compatible
// chat endpoint. No API key required.
type OllamaDriver struct {
	model    string
	endpoint string // defaults to http://localhost:11434
	client   *http.Client
}

// NewOllamaDriver creates an Ollama model driver.
func NewOllamaDriver(model, endpoint string, timeout time.Duration) *OllamaDriver {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &OllamaDriver{
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (d *OllamaDriver) Kind() string { return "ollama" }

// Generate sends a chat completion request to the local instance.
func (d *OllamaDriver) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	start := time.Now()

	messages := append([]chatMessage{{Role: "system", Content: req.System}}, toChatMessages(req)...)
	body, _ := json.Marshal(openAIRequest{Model: d.model, Messages: messages})

	httpReq, err := http.NewRequestWithContext(ctx, "POST", d.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr(d.Kind(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, wrapErr(d.Kind(), err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, statusErr(d.Kind(), httpResp.StatusCode, respBody)
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&oaiResp); err != nil {
		return nil, wrapErr(d.Kind(), err)
	}
	if len(oaiResp.Choices) == 0 || oaiResp.Choices[0].Message.Content == "" {
		return nil, wrapErr(d.Kind(), errEmptyReply)
	}

	return &models.GenerateResponse{
		Text:         oaiResp.Choices[0].Message.Content,
		Model:        d.model,
		InputTokens:  oaiResp.Usage.PromptTokens,
		OutputTokens: oaiResp.Usage.CompletionTokens,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// HealthCheck probes the local instance's version endpoint.
func (d *OllamaDriver) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", d.endpoint+"/api/version", nil)
	if err != nil {
		return wrapErr(d.Kind(), err)
	}
	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return wrapErr(d.Kind(), err)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return statusErr(d.Kind(), httpResp.StatusCode, nil)
	}
	return nil
}
