package wizard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PromptManager loads the fallback engine's system prompts from a directory:
// a shared preamble plus one file per step.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetStepPrompt assembles the system prompt for a step: preamble.md followed
// by step_<name>.md (with dashes underscored).
func (pm *PromptManager) GetStepPrompt(step Step) (string, error) {
	var contents []string

	preamble := filepath.Join(pm.Directory, "preamble.md")
	if data, err := os.ReadFile(preamble); err == nil {
		contents = append(contents, string(data))
	}

	name := "step_" + strings.ReplaceAll(step.String(), "-", "_") + ".md"
	path := filepath.Join(pm.Directory, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read step prompt %s: %v", path, err)
	}
	contents = append(contents, string(data))

	return strings.Join(contents, "\n\n---\n\n"), nil
}
