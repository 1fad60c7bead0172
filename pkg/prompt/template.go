// Package prompt builds the text sent to the generation engine.
//
// Templates use single-brace placeholders:
//
//	{query_str}               the user prompt
//	{tool_name}               active tool name
//	{tool_description}        active tool description
//	{tool_arguments}          rendered argument schema
//	{tool_example_arguments}  rendered example argument set
//	{assigned_tools}          listing of every assigned tool
//
// Substitution is a single left-to-right pass. Substituted values are never
// scanned again, and unknown placeholders are left as written.
package prompt

import (
	"errors"
	"regexp"
	"strings"
)

const (
	PlaceholderQuery                = "query_str"
	PlaceholderToolName             = "tool_name"
	PlaceholderToolDescription      = "tool_description"
	PlaceholderToolArguments        = "tool_arguments"
	PlaceholderToolExampleArguments = "tool_example_arguments"
	PlaceholderAssignedTools        = "assigned_tools"
)

// ErrTemplateRequired is returned when a template is mandatory but empty.
var ErrTemplateRequired = errors.New("prompt template is required")

var placeholderRegex = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)

// ToolContext is the tool projection injected into agent templates.
type ToolContext struct {
	Name             string
	Description      string
	Arguments        string
	ExampleArguments string
	AssignedTools    []string
}

// Values holds replacement text keyed by placeholder name, without braces.
type Values map[string]string

// NewValues returns the substitution set for query and, when non-nil, tool.
func NewValues(query string, tool *ToolContext) Values {
	v := Values{PlaceholderQuery: query}
	if tool != nil {
		v[PlaceholderToolName] = tool.Name
		v[PlaceholderToolDescription] = tool.Description
		v[PlaceholderToolArguments] = tool.Arguments
		v[PlaceholderToolExampleArguments] = tool.ExampleArguments
		v[PlaceholderAssignedTools] = strings.Join(tool.AssignedTools, ", ")
	}
	return v
}

// Substitute replaces every known placeholder in tmpl.
func Substitute(tmpl string, values Values) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}
	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		if v, ok := values[match[1:len(match)-1]]; ok {
			return v
		}
		return match
	})
}

// BuildPrompt renders the user prompt. An empty template yields query
// unchanged unless required is set, in which case ErrTemplateRequired.
func BuildPrompt(tmpl, query string, tool *ToolContext, required bool) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		if required {
			return "", ErrTemplateRequired
		}
		return query, nil
	}
	return Substitute(tmpl, NewValues(query, tool)), nil
}

// BuildSystemMessage applies the same substitution to a system message.
// An empty message stays empty.
func BuildSystemMessage(system, query string, tool *ToolContext) string {
	if system == "" {
		return ""
	}
	return Substitute(system, NewValues(query, tool))
}
