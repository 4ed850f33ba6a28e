package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"survey-voice-api/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditMonitor_CheckCredits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/key", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"label":"survey","limit_remaining":3.5,"usage_daily":0.25}}`))
	}))
	defer srv.Close()

	m := NewCreditMonitor(config.AIConfig{OpenRouterAPIKey: "or-key", OpenRouterBaseURL: srv.URL + "/"})
	info, err := m.CheckCredits(t.Context())
	require.NoError(t, err)
	require.NotNil(t, info.Data.LimitRemaining)
	assert.InDelta(t, 3.5, *info.Data.LimitRemaining, 1e-9)
	assert.Equal(t, "low", creditLevel(info))
}

func TestCreditMonitor_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"No auth credentials found","code":401}}`))
	}))
	defer srv.Close()

	m := NewCreditMonitor(config.AIConfig{OpenRouterAPIKey: "bad", OpenRouterBaseURL: srv.URL})
	_, err := m.CheckCredits(t.Context())
	var extErr *ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.True(t, extErr.IsAuthError())
}

func TestCreditMonitor_RunStopsWithContext(t *testing.T) {
	calls := make(chan struct{}, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- struct{}{}
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	m := NewCreditMonitor(config.AIConfig{OpenRouterAPIKey: "k", OpenRouterBaseURL: srv.URL})
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Hour)
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial credit check")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestCreditLevel(t *testing.T) {
	level := func(v *float64) string {
		var info CreditInfo
		info.Data.LimitRemaining = v
		return creditLevel(&info)
	}
	half, ten := 0.5, 10.0
	assert.Equal(t, "ok", level(nil))
	assert.Equal(t, "critical", level(&half))
	assert.Equal(t, "ok", level(&ten))
	assert.Nil(t, NewCreditMonitor(config.AIConfig{}))
}
