// agent-studio is the command line front end for the graph editing
// engine: compile and validate graph documents, convert between visual
// and execution formats, or serve the HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/goliatone/go-logger/glog"
	"github.com/joho/godotenv"

	studio "github.com/goliatone/go-agent-studio"
	"github.com/goliatone/go-agent-studio/graph"
	"github.com/goliatone/go-agent-studio/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CLI is the root kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`

	Compile  CompileCmd  `cmd:"" help:"Compile a graph document to agent source code"`
	Validate ValidateCmd `cmd:"" help:"Validate compiled agent source"`
	Convert  ConvertCmd  `cmd:"" help:"Convert between visual and execution formats"`
	Layout   LayoutCmd   `cmd:"" help:"Apply grid auto-layout to a graph document"`
	Serve    ServeCmd    `cmd:"" help:"Serve the studio HTTP API"`
}

// CompileCmd compiles a YAML or JSON graph document.
type CompileCmd struct {
	File string `arg:"" help:"Graph document (YAML or JSON)"`
	Out  string `short:"o" help:"Write compiled source to file instead of stdout"`
}

func (c *CompileCmd) Run() error {
	doc, err := loadDocument(c.File)
	if err != nil {
		return err
	}
	svc, err := studio.New(studio.Config{})
	if err != nil {
		return err
	}
	defer svc.Close()

	res := svc.CompileDocument(doc)
	printDiagnostics(res.Diagnostics)
	if !res.Valid {
		return fmt.Errorf("graph %q failed validation", doc.Name)
	}
	if c.Out != "" {
		if err := os.WriteFile(c.Out, []byte(res.Code), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		color.Green("✓ compiled %s -> %s", c.File, c.Out)
		return nil
	}
	fmt.Print(res.Code)
	return nil
}

// ValidateCmd re-validates compiled agent source text.
type ValidateCmd struct {
	File string `arg:"" help:"Compiled agent source file"`
}

func (c *ValidateCmd) Run() error {
	raw, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	svc, err := studio.New(studio.Config{})
	if err != nil {
		return err
	}
	defer svc.Close()

	report := svc.ValidateSource(string(raw))
	printDiagnostics(report.Errors)
	if !report.Valid {
		return fmt.Errorf("%s failed validation", c.File)
	}
	color.Green("✓ %s is valid", c.File)
	return nil
}

// ConvertCmd converts a document to the other representation.
type ConvertCmd struct {
	File string `arg:"" help:"Graph document (YAML or JSON)"`
	To   string `default:"execution" enum:"visual,execution" help:"Target format"`
}

func (c *ConvertCmd) Run() error {
	doc, err := loadDocument(c.File)
	if err != nil {
		return err
	}
	switch c.To {
	case "visual":
		// loadDocument already normalizes to visual form.
		return printJSON(map[string]any{"nodes": doc.Nodes, "edges": doc.Edges})
	default:
		return printJSON(map[string]any{"execution": graph.ToExecution(doc.Nodes, doc.Edges)})
	}
}

// LayoutCmd lays out any unpositioned nodes on the grid.
type LayoutCmd struct {
	File string `arg:"" help:"Graph document (YAML or JSON)"`
}

func (c *LayoutCmd) Run() error {
	doc, err := loadDocument(c.File)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"nodes": graph.Layout(doc.Nodes)})
}

// ServeCmd runs the HTTP API.
type ServeCmd struct {
	Addr    string `default:":8089" env:"STUDIO_ADDR" help:"Listen address"`
	DataDir string `env:"STUDIO_DATA_DIR" help:"Badger data directory (empty runs in-memory)"`
	Level   string `default:"info" env:"STUDIO_LOG_LEVEL" help:"Log level"`
}

func (c *ServeCmd) Run() error {
	_ = godotenv.Load()

	logger := studio.NewGlogLogger(glog.NewLogger(
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(c.Level),
	))
	svc, err := studio.New(studio.Config{DataDir: c.DataDir, Logger: logger})
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := server.New(svc, server.WithLogger(logger))
	return srv.Run(c.Addr)
}

func loadDocument(path string) (*graph.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return graph.ParseDocument(raw)
}

func printDiagnostics(diags []string) {
	for _, d := range diags {
		if strings.HasPrefix(d, "warning:") {
			color.Yellow("  %s", d)
		} else {
			color.Red("  %s", d)
		}
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("agent-studio"),
		kong.Description("Graph compilation and versioned editing engine for visual agents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": Version},
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
