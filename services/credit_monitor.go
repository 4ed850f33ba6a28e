package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"survey-voice-api/config"
)

// CreditInfo is OpenRouter's report on the API key used by the clarifier
type CreditInfo struct {
	Data struct {
		Label          string   `json:"label"`
		Limit          *float64 `json:"limit"`
		LimitRemaining *float64 `json:"limit_remaining"`
		Usage          float64  `json:"usage"`
		UsageDaily     float64  `json:"usage_daily"`
		UsageWeekly    float64  `json:"usage_weekly"`
		UsageMonthly   float64  `json:"usage_monthly"`
		IsFreeTier     bool     `json:"is_free_tier"`
	} `json:"data"`
}

// CreditMonitor watches the OpenRouter balance so clarification does not
// silently stop when the key runs dry
type CreditMonitor struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewCreditMonitor returns nil when no OpenRouter key is configured
func NewCreditMonitor(cfg config.AIConfig) *CreditMonitor {
	if cfg.OpenRouterAPIKey == "" {
		return nil
	}
	return &CreditMonitor{
		apiKey:     cfg.OpenRouterAPIKey,
		baseURL:    strings.TrimRight(cfg.OpenRouterBaseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CheckCredits queries the key endpoint for the current balance
func (m *CreditMonitor) CheckCredits(ctx context.Context) (*CreditInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/auth/key", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyError("openrouter", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ParseHTTPError("openrouter", resp)
	}

	var info CreditInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode credit info: %w", err)
	}
	return &info, nil
}

// Run checks the balance now and then every interval until ctx is done
func (m *CreditMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := m.CheckCredits(ctx)
		if err != nil {
			log.Printf("⚠️  [CreditMonitor] Error: %v", err)
		} else {
			logCreditInfo(info)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// creditLevel classifies the remaining balance. Keys without a limit are "ok".
func creditLevel(info *CreditInfo) string {
	if info.Data.LimitRemaining == nil {
		return "ok"
	}
	switch remaining := *info.Data.LimitRemaining; {
	case remaining < 1.0:
		return "critical"
	case remaining < 5.0:
		return "low"
	}
	return "ok"
}

func logCreditInfo(info *CreditInfo) {
	switch creditLevel(info) {
	case "critical":
		log.Printf("🔴 [CreditMonitor] CRITICAL: Low credits! Remaining: $%.2f, clarification will start failing", *info.Data.LimitRemaining)
	case "low":
		log.Printf("🟡 [CreditMonitor] WARNING: Credits running low. Remaining: $%.2f", *info.Data.LimitRemaining)
	default:
		log.Printf("💰 [CreditMonitor] Daily: $%.4f | Weekly: $%.4f | Monthly: $%.4f",
			info.Data.UsageDaily, info.Data.UsageWeekly, info.Data.UsageMonthly)
	}
}
