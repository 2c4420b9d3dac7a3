// Package tools parses tool calls out of free-form model output and executes
// them inside a task's working directory.
package tools

// Tool names understood by the executor.
const (
	ToolReadFile   = "read_file"
	ToolWriteFile  = "write_file"
	ToolRunCommand = "run_command"
	ToolSearch     = "search"

	// ToolBash is accepted as an alias of run_command.
	ToolBash = "bash"
)

// Output ceilings.
const (
	MaxReadBytes   = 10000
	MaxSearchBytes = 5000
)

// DefaultTools is the allow-list every forked context starts with.
func DefaultTools() []string {
	return []string{ToolReadFile, ToolWriteFile, ToolRunCommand, ToolSearch}
}

// canonicalName maps aliases onto executor tool names.
func canonicalName(name string) string {
	if name == ToolBash {
		return ToolRunCommand
	}
	return name
}
