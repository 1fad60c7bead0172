// Command textserver runs the local inference gateway.
//
// Usage:
//
//	textserver serve --config textserver.yaml
//	textserver tools list
//	textserver validate textserver.yaml
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	textserver "github.com/dieharders/ai-text-server-sub000"
	"github.com/dieharders/ai-text-server-sub000/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Tools    ToolsCmd    `cmd:"" help:"Inspect the tool registry."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Print the JSON Schema of the configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path" env:"TEXTSERVER_CONFIG"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(textserver.GetVersion().String())
	return nil
}

func printBanner() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}
	const (
		color = "\033[38;2;99;102;241m"
		reset = "\033[0m"
	)
	fmt.Printf("%s  textserver %s%s\n", color, textserver.GetVersion().Version, reset)
}

func main() {
	config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("textserver"),
		kong.Description("Local inference gateway for Ollama models."),
		kong.UsageOnError(),
	)

	if ctx.Command() == "serve" {
		printBanner()
	}

	logs, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logs.Close()

	err = ctx.Run(&cli, logs)
	ctx.FatalIfErrorf(err)
}
