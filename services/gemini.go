package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"survey-voice-api/config"

	"google.golang.org/genai"
)

// GeminiClient talks to the Gemini API through the genai SDK
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(cfg config.AIConfig) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Printf("[GeminiClient] Initialized with model=%s", cfg.GeminiModel)
	return &GeminiClient{client: client, model: cfg.GeminiModel}, nil
}

// Complete runs one generation. The caller's context bounds the request.
func (gc *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: &req.Temperature,
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	result, err := gc.client.Models.GenerateContent(ctx, gc.model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return nil, ClassifyError(gc.GetProviderName(), err)
	}

	out := &Completion{Model: gc.model, Latency: time.Since(start)}
	if result != nil && len(result.Candidates) > 0 {
		out.Text = result.Text()
	}
	if out.Text == "" {
		return nil, &ExternalServiceError{Service: gc.GetProviderName(), StatusCode: http.StatusBadGateway, Message: "empty response from Gemini"}
	}
	if result.UsageMetadata != nil {
		out.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}

	log.Printf("[GeminiClient] model=%s latency=%dms in=%d out=%d",
		gc.model, out.Latency.Milliseconds(), out.InputTokens, out.OutputTokens)
	return out, nil
}

func (gc *GeminiClient) GetProviderName() string {
	return "gemini"
}

func (gc *GeminiClient) GetModelName() string {
	return gc.model
}
