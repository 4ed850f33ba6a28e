package services

import (
	"testing"

	"survey-voice-api/models"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestValidateResponse(t *testing.T) {
	q := &models.Question{IsRequired: true, MinLength: intPtr(5)}

	res := ValidateResponse(q, "")
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonRequired, res.Reason)

	res = ValidateResponse(q, "hi")
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "at least 5")

	res = ValidateResponse(q, "hello there")
	assert.True(t, res.Valid)
	assert.Empty(t, res.Reason)
}

func TestValidateResponse_MaxLengthAndOptional(t *testing.T) {
	q := &models.Question{MaxLength: intPtr(4)}

	assert.True(t, ValidateResponse(q, "").Valid, "optional question accepts empty answer")
	assert.True(t, ValidateResponse(q, "हाँ").Valid, "length counts characters")
	assert.False(t, ValidateResponse(q, "maybe").Valid)
}

func TestValidateResponse_IsPure(t *testing.T) {
	q := &models.Question{IsRequired: true, MinLength: intPtr(3), MaxLength: intPtr(10)}
	for _, text := range []string{"", "ab", "abcdef", "abcdefghijklmnop"} {
		assert.Equal(t, ValidateResponse(q, text), ValidateResponse(q, text))
	}
	assert.Equal(t, 3, *q.MinLength)
}
