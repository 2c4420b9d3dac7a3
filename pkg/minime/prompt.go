package minime

import (
	"fmt"
	"strings"
)

// CompletionSentinel ends a task when emitted with no tool calls.
const CompletionSentinel = "TASK_COMPLETE"

const continueNudge = "Continue with the task. Use tools as needed. Say TASK_COMPLETE when done."

const systemPromptTemplate = `You are Mini-Me, a focused sub-agent executing a specific task.

CONSTRAINTS:
- You are working in: %s
- You can ONLY use these tools: %s
- Stay focused on your goal. Do not explore beyond what's needed.
- Be concise in your responses.
- When done, say "TASK_COMPLETE" followed by a brief summary.

TOOLS:
You can use tools by outputting JSON in this format:
` + "```json" + `
{"tool": "tool_name", "args": {"arg1": "value1"}}
` + "```" + `

Available tools:
- read_file: Read a file. Args: {"path": "file/path"}
- write_file: Write to a file. Args: {"path": "file/path", "content": "content"}
- run_command: Run a bash command. Args: {"command": "cmd"}
- search: Search for text. Args: {"pattern": "regex", "path": "dir"}

IMPORTANT:
- Report findings concisely
- If stuck, say "I need help with: <issue>"
- Do not make changes outside your goal scope
`

// SystemPrompt declares the tool contract and the completion sentinel.
func SystemPrompt(fc ForkedContext) string {
	return fmt.Sprintf(systemPromptTemplate, fc.WorkDir, strings.Join(fc.AllowedTools, ", "))
}

// SeedMessage is the first user turn: the task plus the forked context only.
func SeedMessage(t Task) string {
	return fmt.Sprintf("TASK: %s\n\nGOAL: %s\n\nRELEVANT FILES:\n%s\n\nFACTS:\n%s",
		t.Description,
		t.Context.Goal,
		strings.Join(t.Context.RelevantFiles, "\n"),
		strings.Join(t.Context.Facts, "\n"),
	)
}
