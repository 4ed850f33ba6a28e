package services

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"survey-voice-api/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwilioClient_PlaceCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Accounts/AC123/Calls.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "+919800000001", r.PostForm.Get("To"))
		assert.Equal(t, "+15550000000", r.PostForm.Get("From"))
		assert.Equal(t, "https://voice.example.com/answer", r.PostForm.Get("Url"))
		assert.Equal(t, "https://voice.example.com/status", r.PostForm.Get("StatusCallback"))
		assert.Len(t, r.PostForm["StatusCallbackEvent"], 4)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"CA9f1","status":"queued"}`))
	}))
	defer srv.Close()

	client := NewTwilioClient(config.TelephonyConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550000000",
		BaseURL:    srv.URL + "/",
	})
	placed, err := client.PlaceCall(t.Context(), PlaceCallRequest{
		To:        "+919800000001",
		AnswerURL: "https://voice.example.com/answer",
		StatusURL: "https://voice.example.com/status",
	})
	require.NoError(t, err)
	assert.Equal(t, "CA9f1", placed.ExternalID)
	assert.Equal(t, "queued", placed.Status)
}

func TestTwilioClient_PlaceCallRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"Invalid To number","status":400}`))
	}))
	defer srv.Close()

	client := NewTwilioClient(config.TelephonyConfig{AccountSID: "AC123", AuthToken: "secret", BaseURL: srv.URL})
	_, err := client.PlaceCall(t.Context(), PlaceCallRequest{To: "123"})
	require.Error(t, err)

	var extErr *ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "twilio", extErr.Service)
	assert.Equal(t, http.StatusBadRequest, extErr.StatusCode)
	assert.Equal(t, "Invalid To number", extErr.Message)
}

func TestNewTelephonyProvider_RequiresCredentials(t *testing.T) {
	assert.Nil(t, NewTelephonyProvider(config.TelephonyConfig{}))
	assert.NotNil(t, NewTelephonyProvider(config.TelephonyConfig{AccountSID: "AC1", AuthToken: "t"}))
}

func TestRenderTwiML(t *testing.T) {
	out, err := askTwiML("hi-IN", spokenPrompt("Rate us", []string{"1", "2", "3"}), "https://x/gather", "https://x/twiml")
	require.NoError(t, err)
	body := string(out)
	assert.Contains(t, body, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, body, `<Gather input="speech" language="hi-IN" action="https://x/gather" method="POST" speechTimeout="auto">`)
	assert.Contains(t, body, `<Say language="hi-IN">Rate us 1, 2, 3.</Say>`)
	assert.Contains(t, body, `<Redirect method="POST">https://x/twiml</Redirect>`)

	out, err = hangupTwiML("en-US", "")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<Response><Hangup></Hangup></Response>")
}
