package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_KnownAndUnknown(t *testing.T) {
	task, err := Lookup(TaskRefine)
	require.NoError(t, err)
	assert.Equal(t, TaskRefine, task.Name)
	assert.Equal(t, 3, task.MaxAttempts)

	_, err = Lookup("launch_campaign")
	assert.Error(t, err)
}

func TestTaskMaxTokensFor(t *testing.T) {
	task := &Task{
		MaxTokens:           4096,
		MaxTokensByProvider: map[string]int{"claude": 8192},
	}
	assert.Equal(t, 8192, task.MaxTokensFor("claude"))
	assert.Equal(t, 4096, task.MaxTokensFor("gemini"))

	// Without per-provider overrides the task-wide value applies everywhere.
	plain := &Task{MaxTokens: 1024}
	assert.Equal(t, 1024, plain.MaxTokensFor("claude"))
}
