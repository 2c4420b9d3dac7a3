package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganesha/pkg/agent/llm"
)

func TestConvertMessages(t *testing.T) {
	tests := []struct {
		name       string
		messages   []llm.CompletionMessage
		wantLen    int
		wantSystem string
		wantErr    bool
	}{
		{
			name: "system extracted and assistant mapped to model",
			messages: []llm.CompletionMessage{
				llm.NewSystemMessage("rules"),
				llm.NewUserMessage("hi"),
				llm.NewAssistantMessage("hello"),
			},
			wantLen:    2,
			wantSystem: "rules",
		},
		{
			name:    "empty",
			wantErr: true,
		},
		{
			name:     "only system",
			messages: []llm.CompletionMessage{llm.NewSystemMessage("rules")},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents, system, err := convertMessages(tt.messages)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, contents, tt.wantLen)
			assert.Equal(t, tt.wantSystem, system)
			assert.Equal(t, "model", contents[len(contents)-1].Role)
		})
	}
}

func TestGetModelName(t *testing.T) {
	assert.Equal(t, "gemini-2.0-flash", NewGeminiClient("k", "gemini-2.0-flash", "").GetModelName())
}
