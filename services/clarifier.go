package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"survey-voice-api/models"
)

// ClarifyRequest carries everything the clarifier needs to interpret one
// spoken answer
type ClarifyRequest struct {
	ResponseText string
	QuestionText string
	QuestionType models.QuestionType
	Options      []string
	Language     string
	Context      map[string]any
}

// ClarifyResult is the clarifier's interpretation of an answer.
// Confidence is in [0,1].
type ClarifyResult struct {
	Text       string
	Confidence float64
	Insights   map[string]any
}

// Clarifier rewrites an ambiguous answer into a clear one and scores how
// sure it is
type Clarifier interface {
	Clarify(ctx context.Context, req ClarifyRequest) (*ClarifyResult, error)
}

// plainTextConfidence is assigned when the model ignores the JSON contract
// and answers with bare text
const plainTextConfidence = 0.8

const clarifierSystemPrompt = `You are an AI assistant that helps clarify survey responses collected over the phone.
Reply with a single JSON object and nothing else:
{"clarified_response": string, "confidence": number between 0 and 1, "insights": {"sentiment": "positive"|"neutral"|"negative", "themes": [string], "needs_clarification": boolean, "reason": string}}`

// LLMClarifier asks an AIProvider to clarify answers. Calls go through a
// circuit breaker so an unhealthy provider fails fast.
type LLMClarifier struct {
	provider AIProvider
	breaker  *CircuitBreaker
}

func NewLLMClarifier(provider AIProvider, breaker *CircuitBreaker) *LLMClarifier {
	return &LLMClarifier{provider: provider, breaker: breaker}
}

func (c *LLMClarifier) Clarify(ctx context.Context, req ClarifyRequest) (*ClarifyResult, error) {
	completionReq := CompletionRequest{
		System:      clarifierSystemPrompt,
		Prompt:      buildClarificationPrompt(req),
		Temperature: 0.3,
		MaxTokens:   500,
		JSON:        true,
	}

	var reply *Completion
	call := func() error {
		var err error
		reply, err = c.provider.Complete(ctx, completionReq)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(call)
	} else {
		err = call()
	}
	if err != nil {
		classified := ClassifyError(c.provider.GetProviderName(), err)
		log.Printf("❌ [Clarifier] %s call failed: %v", c.provider.GetProviderName(), classified)
		return nil, classified
	}

	result := parseClarification(reply.Text, req.ResponseText)
	result.Insights["clarification_method"] = c.provider.GetProviderName()
	result.Insights["model_used"] = reply.Model
	result.Insights["original_response"] = req.ResponseText
	result.Insights["language_detected"] = req.Language
	result.Insights["input_tokens"] = reply.InputTokens
	result.Insights["output_tokens"] = reply.OutputTokens
	result.Insights["latency_ms"] = reply.Latency.Milliseconds()

	return result, nil
}

// State reports the circuit breaker state, or "ready" without a breaker
func (c *LLMClarifier) State() string {
	if c.breaker == nil {
		return "ready"
	}
	return c.breaker.State()
}

func buildClarificationPrompt(req ClarifyRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", req.QuestionText)
	fmt.Fprintf(&b, "Question Type: %s\n", req.QuestionType)
	if len(req.Options) > 0 {
		fmt.Fprintf(&b, "Options: %s\n", strings.Join(req.Options, ", "))
	}
	fmt.Fprintf(&b, "Language: %s\n", models.LanguageName(req.Language))
	fmt.Fprintf(&b, "Original Response: %q\n", req.ResponseText)
	if len(req.Context) > 0 {
		ctxJSON, _ := json.Marshal(req.Context)
		fmt.Fprintf(&b, "Context: %s\n", ctxJSON)
	} else {
		b.WriteString("Context: No additional context provided\n")
	}
	b.WriteString(`
Provide a clarified version of the response that clearly and completely answers the question.
If the response is already clear, return it as-is with high confidence.
If it is ambiguous or incomplete, give the most reasonable interpretation and lower the confidence.
Keep the original language and cultural context.
For multiple choice questions pick the best matching option; for yes/no questions answer yes or no.`)
	return b.String()
}

// parseClarification reads the model's JSON reply. Replies wrapped in code
// fences are accepted; anything unparseable is taken as the clarified text.
func parseClarification(raw, original string) *ClarifyResult {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var parsed struct {
		ClarifiedResponse string         `json:"clarified_response"`
		Confidence        *float64       `json:"confidence"`
		Insights          map[string]any `json:"insights"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil || parsed.ClarifiedResponse == "" {
		text := body
		if text == "" {
			text = original
		}
		return &ClarifyResult{
			Text:       text,
			Confidence: plainTextConfidence,
			Insights:   map[string]any{"parse_error": "reply was not the expected JSON object"},
		}
	}

	confidence := plainTextConfidence
	if parsed.Confidence != nil {
		confidence = clampConfidence(*parsed.Confidence)
	}
	insights := parsed.Insights
	if insights == nil {
		insights = map[string]any{}
	}
	return &ClarifyResult{
		Text:       strings.TrimSpace(parsed.ClarifiedResponse),
		Confidence: confidence,
		Insights:   insights,
	}
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		// some models answer on a 0-100 scale
		if v <= 100 {
			return v / 100
		}
		return 1
	}
	return v
}

// errClarifierEmpty is reported when a clarifier returns nothing usable
var errClarifierEmpty = &ExternalServiceError{
	Service:    "clarifier",
	StatusCode: http.StatusBadGateway,
	Message:    "clarifier returned an empty result",
}
