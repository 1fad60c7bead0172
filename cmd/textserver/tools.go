package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
	"github.com/dieharders/ai-text-server-sub000/pkg/observability"
)

// ToolsCmd groups tool registry commands.
type ToolsCmd struct {
	List ToolsListCmd `cmd:"" default:"withargs" help:"List every resolvable tool."`
}

// ToolsListCmd prints the resolved registry.
type ToolsListCmd struct {
	JSON bool `help:"Print the tool descriptions as JSON."`
}

func (c *ToolsListCmd) Run(cli *CLI) error {
	ctx := context.Background()
	config.LoadDotEnvForConfig(cli.Config)
	cfg, loader, err := config.LoadConfigFile(ctx, cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if loader != nil {
		defer loader.Close()
	}

	registry, _, user, err := buildTools(cfg, observability.NoopManager())
	if err != nil {
		return err
	}
	defer user.Close()

	list := registry.List()
	if c.JSON {
		out := make([]any, 0, len(list))
		for _, t := range list {
			out = append(out, registry.Describe(t))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOURCE\tREQUIRED ARGS\tDESCRIPTION")
	for _, t := range list {
		def := t.Definition()
		desc := registry.Describe(t)
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", def.Name, def.Source, desc.AllowedArgumentNames, def.Description)
	}
	return w.Flush()
}
