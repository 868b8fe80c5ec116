package content

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultIcon = "sparkle"

var ErrInvalidTable = errors.New("invalid content table")

type StarterPrompt struct {
	Label  string `yaml:"label" json:"label"`
	Prompt string `yaml:"prompt" json:"prompt"`
	Icon   string `yaml:"icon" json:"icon"`
}

// Table is the copy shown around and inside the chat widget. It is loaded
// from a file so deployments can swap wording without a rebuild.
type Table struct {
	Greeting    string          `yaml:"greeting"`
	Message     string          `yaml:"message"`
	Disclaimer  string          `yaml:"disclaimer"`
	Placeholder string          `yaml:"placeholder"`
	Prompts     []StarterPrompt `yaml:"prompts"`
}

func Default() Table {
	return Table{
		Greeting:    "Hi, I'm Dorthy, your AI guide for first-time home buyers 🏡",
		Message:     "I help you discover federal, provincial, and municipal housing programs you may qualify for. Everything is anonymous and confidential.",
		Disclaimer:  "This chatbot helps you understand Canadian housing assistance programs available for first-time home buyers. Currently trained on Ontario provincial programs and certain municipalities in Ontario.",
		Placeholder: "Share your details to discover programs you may qualify for...",
		Prompts: []StarterPrompt{
			{
				Label:  "I want to know what housing programs I qualify for",
				Prompt: "I want to know what housing programs I qualify for",
				Icon:   DefaultIcon,
			},
		},
	}
}

func Load(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read content file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML table. Fields left out keep their default value; a
// prompts list, when present, replaces the default list entirely.
func Parse(data []byte) (Table, error) {
	table := Default()
	var decoded Table
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		return Table{}, fmt.Errorf("decode content file: %w", err)
	}
	if decoded.Greeting != "" {
		table.Greeting = decoded.Greeting
	}
	if decoded.Message != "" {
		table.Message = decoded.Message
	}
	if decoded.Disclaimer != "" {
		table.Disclaimer = decoded.Disclaimer
	}
	if decoded.Placeholder != "" {
		table.Placeholder = decoded.Placeholder
	}
	if decoded.Prompts != nil {
		table.Prompts = decoded.Prompts
	}
	for i := range table.Prompts {
		if strings.TrimSpace(table.Prompts[i].Icon) == "" {
			table.Prompts[i].Icon = DefaultIcon
		}
	}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}

func (t Table) Validate() error {
	if strings.TrimSpace(t.Greeting) == "" {
		return fmt.Errorf("%w: greeting is required", ErrInvalidTable)
	}
	if len(t.Prompts) == 0 {
		return fmt.Errorf("%w: at least one starter prompt is required", ErrInvalidTable)
	}
	for i, prompt := range t.Prompts {
		if strings.TrimSpace(prompt.Label) == "" {
			return fmt.Errorf("%w: prompt %d has no label", ErrInvalidTable, i)
		}
		if strings.TrimSpace(prompt.Prompt) == "" {
			return fmt.Errorf("%w: prompt %d has no prompt text", ErrInvalidTable, i)
		}
	}
	return nil
}

// Clone returns a copy that shares no slices with t.
func (t Table) Clone() Table {
	next := t
	next.Prompts = append([]StarterPrompt(nil), t.Prompts...)
	return next
}

// PlaceholderFunc derives the composer placeholder. The default ignores
// everything but the table text.
type PlaceholderFunc func(Table) string

func StaticPlaceholder(t Table) string {
	return t.Placeholder
}
