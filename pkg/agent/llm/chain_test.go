package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagging(tag string, order *[]string) Middleware {
	return func(next LLMClient) LLMClient {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				*order = append(*order, tag)
				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	base := NewMockClient("base-model", "hello")

	client := Chain(base, tagging("outer", &order), tagging("inner", &order))
	resp, err := client.Complete(context.Background(), NewCompletionRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "base-model", client.GetModelName())
}

func TestSplitSystem(t *testing.T) {
	system, rest := SplitSystem([]CompletionMessage{
		NewSystemMessage("one"),
		NewUserMessage("hi"),
		NewSystemMessage("two"),
		NewAssistantMessage("yo"),
	})
	assert.Equal(t, "one\n\ntwo", system)
	require.Len(t, rest, 2)
	assert.Equal(t, RoleUser, rest[0].Role)
	assert.Equal(t, RoleAssistant, rest[1].Role)
}

func TestToolResultMessage(t *testing.T) {
	msg := ToolResultMessage("read_file", "contents")
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "[Tool Result: read_file]\ncontents", msg.Content)
}

func TestMockClientScript(t *testing.T) {
	mock := NewMockClient("m", "first", "second")
	ctx := context.Background()

	r1, err := mock.Complete(ctx, NewCompletionRequest([]CompletionMessage{NewUserMessage("a")}))
	require.NoError(t, err)
	r2, err := mock.Complete(ctx, NewCompletionRequest(nil))
	require.NoError(t, err)
	r3, err := mock.Complete(ctx, NewCompletionRequest(nil))
	require.NoError(t, err)

	assert.Equal(t, "first", r1.Content)
	assert.Equal(t, "second", r2.Content)
	assert.Equal(t, "second", r3.Content, "last response repeats once the script is exhausted")
	assert.Equal(t, 3, mock.Calls())
	assert.Equal(t, "a", mock.Requests()[0].Messages[0].Content)
}
