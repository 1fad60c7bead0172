package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
)

const (
	SourcePrebuilt = "prebuilt"
	SourceUser     = "user"
)

// Argument describes one tool parameter.
type Argument struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// Definition is the immutable description of a registered tool.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Path        string         `json:"path"`
	Arguments   []Argument     `json:"arguments"`
	Example     map[string]any `json:"example"`
	Source      string         `json:"source"`
}

// RequiredArguments returns the names of required arguments in declaration order.
func (d Definition) RequiredArguments() []string {
	var names []string
	for _, arg := range d.Arguments {
		if arg.Required {
			names = append(names, arg.Name)
		}
	}
	return names
}

// Validate checks the load-time invariants of a definition.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &InvalidDefinitionError{Reason: "name is required"}
	}
	if len(d.Example) == 0 {
		return &InvalidDefinitionError{Name: d.Name, Reason: "an example argument set is required"}
	}
	seen := make(map[string]bool, len(d.Arguments))
	for _, arg := range d.Arguments {
		if arg.Name == "" {
			return &InvalidDefinitionError{Name: d.Name, Reason: "argument without a name"}
		}
		if seen[arg.Name] {
			return &InvalidDefinitionError{Name: d.Name, Reason: fmt.Sprintf("argument %q declared twice", arg.Name)}
		}
		seen[arg.Name] = true
	}
	return nil
}

// Description is the prompt-facing projection of a definition.
type Description struct {
	Name                     string   `json:"name"`
	Description              string   `json:"description"`
	RenderedArguments        string   `json:"renderedArguments"`
	RenderedExampleArguments string   `json:"renderedExampleArguments"`
	AllowedArgumentNames     []string `json:"allowedArgumentNames"`
}

// Describe renders d for prompt building. Only required arguments are
// allowed through to an invocation; optional ones are documented but
// dropped by the output filter.
func Describe(d Definition) Description {
	return Description{
		Name:                     d.Name,
		Description:              d.Description,
		RenderedArguments:        renderArguments(d.Arguments),
		RenderedExampleArguments: renderExample(d.Example),
		AllowedArgumentNames:     d.RequiredArguments(),
	}
}

// PromptContext adapts the description to the template engine.
func (d Description) PromptContext(assigned []string) *prompt.ToolContext {
	return &prompt.ToolContext{
		Name:             d.Name,
		Description:      d.Description,
		Arguments:        d.RenderedArguments,
		ExampleArguments: d.RenderedExampleArguments,
		AssignedTools:    assigned,
	}
}

func renderArguments(args []Argument) string {
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			b.WriteByte('\n')
		}
		typ := arg.Type
		if typ == "" {
			typ = "any"
		}
		qualifier := "optional"
		if arg.Required {
			qualifier = "required"
		}
		fmt.Fprintf(&b, "- %s (%s, %s)", arg.Name, typ, qualifier)
		if arg.Description != "" {
			fmt.Fprintf(&b, ": %s", strings.TrimSuffix(arg.Description, "."))
		}
		if len(arg.Enum) > 0 {
			fmt.Fprintf(&b, ". One of: %s", strings.Join(arg.Enum, ", "))
		}
	}
	return b.String()
}

func renderExample(example map[string]any) string {
	if len(example) == 0 {
		return "{}"
	}
	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", example)
	}
	return string(data)
}
