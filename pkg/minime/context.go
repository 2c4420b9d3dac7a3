package minime

import (
	"errors"
	"os"
	"slices"

	"ganesha/pkg/tools"
)

// ErrEmptyGoal is returned when forking without a goal.
var ErrEmptyGoal = errors.New("fork: goal must not be empty")

// ForkedContext is the only information a sub-agent receives: no parent
// history, just explicitly selected files (paths, not contents) and facts.
type ForkedContext struct {
	Goal          string
	RelevantFiles []string
	Facts         []string
	AllowedTools  []string
	WorkDir       string
}

// Fork builds a context for goal with the default tool allow-list and the
// process working directory.
func Fork(goal string, files []string) (ForkedContext, error) {
	if goal == "" {
		return ForkedContext{}, ErrEmptyGoal
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return ForkedContext{
		Goal:          goal,
		RelevantFiles: slices.Clone(files),
		AllowedTools:  tools.DefaultTools(),
		WorkDir:       wd,
	}, nil
}

// WithFacts returns a copy carrying facts in addition to any already present.
func (fc ForkedContext) WithFacts(facts ...string) ForkedContext {
	out := fc.clone()
	out.Facts = append(out.Facts, facts...)
	return out
}

// WithWorkDir returns a copy rooted at dir.
func (fc ForkedContext) WithWorkDir(dir string) ForkedContext {
	out := fc.clone()
	out.WorkDir = dir
	return out
}

// WithTools returns a copy restricted to names.
func (fc ForkedContext) WithTools(names ...string) ForkedContext {
	out := fc.clone()
	out.AllowedTools = slices.Clone(names)
	return out
}

func (fc ForkedContext) clone() ForkedContext {
	return ForkedContext{
		Goal:          fc.Goal,
		RelevantFiles: slices.Clone(fc.RelevantFiles),
		Facts:         slices.Clone(fc.Facts),
		AllowedTools:  slices.Clone(fc.AllowedTools),
		WorkDir:       fc.WorkDir,
	}
}
