package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeakable(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "How are you feeling today", "How are you feeling today"},
		{"bold", "Did you take **all** your medicine?", "Did you take all your medicine?"},
		{"list", "Choose one:\n* Good\n* Bad", "Choose one: Good. Bad."},
		{"numbered", "1. Morning\n2. Evening", "Morning. Evening."},
		{"hindi danda", "आप कैसे हैं।\nधन्यवाद", "आप कैसे हैं। धन्यवाद."},
		{"extra spaces", "  rate   us \n\n", "rate us"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, speakable(tc.in))
		})
	}
}

func TestSpokenPrompt_StripsMarkdown(t *testing.T) {
	assert.Equal(t, "Rate the clinic 1, 2.", spokenPrompt("Rate the _clinic_", []string{"1", "2"}))
	assert.Equal(t, "Rate the clinic 1, 2.", spokenPrompt("Rate the **clinic**", []string{"1", "2"}))
}
