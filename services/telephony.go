package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"survey-voice-api/config"
)

// PlaceCallRequest describes an outbound survey call
type PlaceCallRequest struct {
	To        string
	From      string
	AnswerURL string
	StatusURL string
}

// PlacedCall is the provider's acknowledgement of a dial request
type PlacedCall struct {
	ExternalID string `json:"sid"`
	Status     string `json:"status"`
}

// TelephonyProvider dials contacts and reports back through webhooks
type TelephonyProvider interface {
	PlaceCall(ctx context.Context, req PlaceCallRequest) (*PlacedCall, error)
	GetProviderName() string
}

// TwilioClient places calls through the Twilio REST API
type TwilioClient struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// NewTelephonyProvider returns a Twilio client, or nil when no credentials
// are configured
func NewTelephonyProvider(cfg config.TelephonyConfig) TelephonyProvider {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		log.Println("⚠️  [Telephony] Twilio credentials not configured, outbound calls disabled")
		return nil
	}
	log.Printf("✅ [Telephony] Twilio client ready (from %s)", cfg.FromNumber)
	return NewTwilioClient(cfg)
}

func NewTwilioClient(cfg config.TelephonyConfig) *TwilioClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.twilio.com/2010-04-01"
	}
	return &TwilioClient{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *TwilioClient) GetProviderName() string {
	return "twilio"
}

func (c *TwilioClient) PlaceCall(ctx context.Context, req PlaceCallRequest) (*PlacedCall, error) {
	from := req.From
	if from == "" {
		from = c.fromNumber
	}
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", from)
	form.Set("Url", req.AnswerURL)
	form.Set("Method", http.MethodPost)
	if req.StatusURL != "" {
		form.Set("StatusCallback", req.StatusURL)
		form.Set("StatusCallbackMethod", http.MethodPost)
		for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
			form.Add("StatusCallbackEvent", ev)
		}
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, url.PathEscape(c.accountSID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, ClassifyError(c.GetProviderName(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ParseHTTPError(c.GetProviderName(), resp)
	}

	var placed PlacedCall
	if err := json.NewDecoder(resp.Body).Decode(&placed); err != nil {
		return nil, &ExternalServiceError{
			Service:    c.GetProviderName(),
			StatusCode: http.StatusBadGateway,
			Message:    "unreadable call response",
			Err:        err,
		}
	}
	log.Printf("[Telephony] Call %s queued to %s (%s)", placed.ExternalID, req.To, placed.Status)
	return &placed, nil
}
