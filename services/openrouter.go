package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"survey-voice-api/config"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouterClient uses the OpenAI-compatible API exposed by OpenRouter
type OpenRouterClient struct {
	client *openai.Client
	model  string
}

func NewOpenRouterClient(cfg config.AIConfig) (*OpenRouterClient, error) {
	if cfg.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
	}

	clientCfg := openai.DefaultConfig(cfg.OpenRouterAPIKey)
	clientCfg.BaseURL = cfg.OpenRouterBaseURL
	clientCfg.HTTPClient = &http.Client{
		Transport: &openRouterTransport{
			base:    http.DefaultTransport,
			referer: cfg.OpenRouterReferer,
			title:   cfg.OpenRouterTitle,
		},
	}

	log.Printf("[OpenRouterClient] Initialized with model=%s", cfg.OpenRouterModel)
	return &OpenRouterClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.OpenRouterModel,
	}, nil
}

// openRouterTransport adds the attribution headers OpenRouter asks for
type openRouterTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *openRouterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("HTTP-Referer", t.referer)
	req.Header.Set("X-Title", t.title)
	return t.base.RoundTrip(req)
}

func (orc *OpenRouterClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       orc.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := orc.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, ClassifyError(orc.GetProviderName(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ExternalServiceError{Service: orc.GetProviderName(), StatusCode: http.StatusBadGateway, Message: "no response from LLM"}
	}

	out := &Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Latency:      time.Since(start),
	}
	if out.Model == "" {
		out.Model = orc.model
	}

	log.Printf("[OpenRouterClient] model=%s latency=%dms in=%d out=%d",
		out.Model, out.Latency.Milliseconds(), out.InputTokens, out.OutputTokens)
	return out, nil
}

func (orc *OpenRouterClient) GetProviderName() string {
	return "openrouter"
}

func (orc *OpenRouterClient) GetModelName() string {
	return orc.model
}
