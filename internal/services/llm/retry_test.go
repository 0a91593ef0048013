package llm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status code", errors.New("Error 429: too many requests"), true},
		{"gemini status", errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"), true},
		{"plain wording", errors.New("rate limit exceeded, slow down"), true},
		{"quota wording", errors.New("quota exceeded for project"), true},
		{"unrelated", errors.New("connection refused"), false},
		{"wrapped", fmt.Errorf("invoke: %w", errors.New("429 Too Many Requests")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimitError(tt.err))
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"nil", nil, 0},
		{"no delay", errors.New("429 Too Many Requests"), 0},
		{
			"gemini phrasing",
			errors.New("Error 429, Message: quota exceeded. Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"),
			time.Duration(45.387061394 * float64(time.Second)),
		},
		{"integer seconds", errors.New("Please retry in 10s"), 10 * time.Second},
		{"retryDelay field", errors.New("retryDelay: 7s"), 7 * time.Second},
		{"case insensitive", errors.New("please retry in 3s"), 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRetryDelay(tt.err))
		})
	}
}
