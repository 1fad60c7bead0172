package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dieharders/ai-text-server-sub000/pkg/tools"
)

// BlockExtractor finds the candidate call payload in model text.
type BlockExtractor interface {
	ExtractCandidateBlock(text string) (string, bool)
}

var (
	fencedBlockRegex = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \\t]*\\r?\\n?(.*?)```")
	braceSpanRegex   = regexp.MustCompile(`(?s)\{.*?\}`)

	// "://" is left alone so URLs in values survive.
	lineCommentRegex   = regexp.MustCompile(`(?m)(^|[^:])//[^\n]*`)
	blockCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)
)

// RegexExtractor takes the first fenced block, or failing that the first
// non-greedy brace span. A span whose string values contain braces can be
// cut short; only the first match is considered.
type RegexExtractor struct{}

func (RegexExtractor) ExtractCandidateBlock(text string) (string, bool) {
	if m := fencedBlockRegex.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := braceSpanRegex.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// Sanitize strips comments and trailing commas from a candidate block.
func Sanitize(block string) string {
	block = blockCommentRegex.ReplaceAllString(block, "")
	block = lineCommentRegex.ReplaceAllString(block, "$1")
	block = trailingCommaRegex.ReplaceAllString(block, "$1")
	return strings.TrimSpace(block)
}

// ParsedOutput is the result of an agent-mode call.
type ParsedOutput struct {
	Raw  map[string]any `json:"raw"`
	Text string         `json:"text"`
}

// ToolInvoker runs a resolved tool.
type ToolInvoker interface {
	Invoke(ctx context.Context, t tools.Tool, args map[string]any) (any, error)
}

// OutputParser turns model text into a filtered tool call and runs it.
type OutputParser struct {
	extractor BlockExtractor
	invoker   ToolInvoker
}

func NewOutputParser(extractor BlockExtractor, invoker ToolInvoker) *OutputParser {
	if extractor == nil {
		extractor = RegexExtractor{}
	}
	return &OutputParser{extractor: extractor, invoker: invoker}
}

// ExtractArguments locates, sanitizes and decodes the payload, then drops
// every key not in allowed. The filter runs even on well-formed payloads.
func (p *OutputParser) ExtractArguments(text string, allowed []string) (map[string]any, error) {
	block, ok := p.extractor.ExtractCandidateBlock(text)
	if !ok {
		return nil, newError(KindNoStructuredOutput, "parse", "no parsable block found", nil)
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(Sanitize(block)), &record); err != nil {
		return nil, newError(KindMalformedOutput, "parse", "failed to parse tool arguments", err)
	}

	allow := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allow[name] = true
	}
	filtered := make(map[string]any, len(allowed))
	for k, v := range record {
		if allow[k] {
			filtered[k] = v
		}
	}
	return filtered, nil
}

// Parse extracts the arguments for t and invokes it.
func (p *OutputParser) Parse(ctx context.Context, text string, t tools.Tool, desc tools.Description) (*ParsedOutput, error) {
	args, err := p.ExtractArguments(text, desc.AllowedArgumentNames)
	if err != nil {
		return nil, err
	}

	result, err := p.invoker.Invoke(ctx, t, args)
	if err != nil {
		return nil, classify("invoke", err)
	}
	return &ParsedOutput{
		Raw:  map[string]any{"result": result},
		Text: stringify(result),
	}, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
