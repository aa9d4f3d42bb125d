package brain

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed persona.txt
var defaultPersona string

const userNamePlaceholder = "{user_name}"

// Persona is the companion's system instruction template.
type Persona struct {
	template string
}

// DefaultPersona returns the built-in persona.
func DefaultPersona() *Persona {
	return &Persona{template: defaultPersona}
}

// LoadPersona reads a template from path. An empty path yields the default.
func LoadPersona(path string) (*Persona, error) {
	if path == "" {
		return DefaultPersona(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("brain: read persona %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("brain: persona %s is empty", path)
	}
	return &Persona{template: string(data)}, nil
}

// Render substitutes the user's name and appends what is remembered about them.
func (p *Persona) Render(userName, memoryContext string) string {
	prompt := strings.ReplaceAll(p.template, userNamePlaceholder, userName)
	if memoryContext != "" {
		prompt += fmt.Sprintf("\n\n## What You Remember About %s\n%s", userName, memoryContext)
	}
	return prompt
}
