package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/denghongcai/npm-dep-tree-analyzer/analyzer"
	"github.com/denghongcai/npm-dep-tree-analyzer/cmd/globals"
	"github.com/denghongcai/npm-dep-tree-analyzer/metrics"
	"github.com/denghongcai/npm-dep-tree-analyzer/pkglock"
	"github.com/denghongcai/npm-dep-tree-analyzer/print"
)

type CLI struct {
	globals.Globals
	Version VersionCmd `cmd:"" help:"Show version information"`
	Analyze AnalyzeCmd `cmd:"" help:"Resolve and hoist the dependency tree of one or more packages"`
}

var Version = "dev"

type VersionCmd struct{}

func (cmd *VersionCmd) Run(globals *globals.Globals) error {
	fmt.Printf("%s", Version)
	return nil
}

type AnalyzeCmd struct {
	Registry          string            `help:"Base URL of the npm-compatible registry" default:"https://registry.npmjs.org" env:"DEPRESOLVE_REGISTRY"`
	Timeout           time.Duration     `help:"Registry request timeout" default:"30s" env:"DEPRESOLVE_TIMEOUT"`
	Header            map[string]string `help:"Extra request headers (name=value)"`
	JSON              bool              `help:"Emit the full analysis result as JSON"`
	MetricsListenAddr string            `help:"Address for metrics endpoint (disabled when empty)" env:"DEPRESOLVE_METRICS_LISTEN_ADDR"`
	Packages          []string          `arg:"" help:"Packages to analyze (format: package@version or ./path/to/package-lock.json)"`
}

func (cmd *AnalyzeCmd) Run(globals *globals.Globals) error {
	opts := &slog.HandlerOptions{}
	if globals.Verbose {
		opts.Level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, opts))

	var m metrics.Metrics
	if cmd.MetricsListenAddr != "" {
		var err error
		if m, err = metrics.New(); err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		go func() {
			if err := metrics.ListenAndServe(cmd.MetricsListenAddr); err != nil {
				log.Error("metrics server exited", slog.String("addr", cmd.MetricsListenAddr), slog.String("error", err.Error()))
			}
		}()
	}

	requests, err := cmd.requests()
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("no packages specified")
	}

	a := analyzer.New(log, analyzer.Options{
		Registry: cmd.Registry,
		Timeout:  cmd.Timeout,
		Headers:  cmd.Header,
	}, m)

	ctx := context.Background()

	if len(requests) == 1 {
		result, err := a.Analyze(ctx, requests[0].Name, requests[0].Version)
		if err != nil {
			return err
		}
		if cmd.JSON {
			return writeJSON(result)
		}
		print.Tree(os.Stdout, result.DependencyTree)
		fmt.Println()
		print.Hoisted(os.Stdout, result.HoistedTree)
		fmt.Println()
		print.Flat(os.Stdout, result.FlatDependencies)
		return nil
	}

	result, err := a.AnalyzeAll(ctx, requests)
	if err != nil {
		return err
	}
	if cmd.JSON {
		return writeJSON(result)
	}
	print.Hoisted(os.Stdout, result.Combined.HoistedTree)
	fmt.Println()
	print.Flat(os.Stdout, result.Combined.FlatDependencies)
	return nil
}

// requests expands the positional arguments into package requests. A
// single package-lock.json path expands into all the packages it pins.
func (cmd *AnalyzeCmd) requests() ([]analyzer.PackageRequest, error) {
	if len(cmd.Packages) == 1 && strings.HasSuffix(cmd.Packages[0], "package-lock.json") {
		f, err := os.Open(cmd.Packages[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open package-lock.json: %w", err)
		}
		defer f.Close()
		requests, err := pkglock.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse package-lock.json: %w", err)
		}
		return requests, nil
	}

	requests := make([]analyzer.PackageRequest, 0, len(cmd.Packages))
	for _, pkg := range cmd.Packages {
		pkg = strings.TrimSpace(pkg)
		if pkg == "" {
			continue
		}
		requests = append(requests, analyzer.ParseRequest(pkg))
	}
	return requests, nil
}

func writeJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func main() {
	cli := CLI{
		Globals: globals.Globals{},
	}

	ctx := kong.Parse(&cli,
		kong.Name("depresolve"),
		kong.Description("Resolve NPM dependency trees and plan hoisted installations"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
