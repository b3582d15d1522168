package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
)

var (
	errNoAPIKey   = errors.New("api key not configured")
	errEmptyReply = errors.New("empty reply from provider")
)

// wrapErr converts any driver failure into a RemoteModelError.
func wrapErr(provider string, err error) *models.RemoteModelError {
	return &models.RemoteModelError{Provider: provider, Err: err}
}

// statusErr maps a non-200 response to a RemoteModelError, flagging 429
// so the retry policy backs off instead of hammering the provider.
func statusErr(provider string, code int, body []byte) *models.RemoteModelError {
	return &models.RemoteModelError{
		Provider:  provider,
		RateLimit: code == http.StatusTooManyRequests,
		Err:       fmt.Errorf("status %d: %s", code, string(body)),
	}
}

// toChatMessages flattens the request history plus the current message
// into the chat completion wire format shared by all three providers.
func toChatMessages(req *models.GenerateRequest) []chatMessage {
	out := make([]chatMessage, 0, len(req.History)+1)
	for _, t := range req.History {
		out = append(out, chatMessage{Role: string(t.Role), Content: t.Text})
	}
	return append(out, chatMessage{Role: "user", Content: req.Message})
}

// OpenAIDriver calls the OpenAI chat completions API, or any
// OpenAI-compatible endpoint.
type OpenAIDriver struct {
	apiKey   string
	model    string
	endpoint string // defaults to https://api.openai.com/v1
	client   *http.Client
}

// NewOpenAIDriver creates an OpenAI-compatible chat driver.
func NewOpenAIDriver(apiKey, model, endpoint string, timeout time.Duration) *OpenAIDriver {
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	return &OpenAIDriver{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (d *OpenAIDriver) Kind() string { return "openai" }

type openAIRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate sends a chat completion request.
func (d *OpenAIDriver) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	if d.apiKey == "" {
		return nil, wrapErr(d.Kind(), errNoAPIKey)
	}
	start := time.Now()

	messages := append([]chatMessage{{Role: "system", Content: req.System}}, toChatMessages(req)...)
	body, _ := json.Marshal(openAIRequest{Model: d.model, Messages: messages})

	httpReq, err := http.NewRequestWithContext(ctx, "POST", d.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr(d.Kind(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

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

// HealthCheck verifies credentials are present.
func (d *OpenAIDriver) HealthCheck(ctx context.Context) error {
	if d.apiKey == "" {
		return wrapErr(d.Kind(), errNoAPIKey)
	}
	return nil
}
