// Package analyzer is the top-level façade: it builds the logical
// dependency tree for one or more packages, hoists it, and returns both
// views together with the flat dependency index.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/denghongcai/npm-dep-tree-analyzer/cache"
	"github.com/denghongcai/npm-dep-tree-analyzer/hoist"
	"github.com/denghongcai/npm-dep-tree-analyzer/metrics"
	"github.com/denghongcai/npm-dep-tree-analyzer/registry"
	"github.com/denghongcai/npm-dep-tree-analyzer/resolve"
	"github.com/denghongcai/npm-dep-tree-analyzer/tree"
)

// ErrInvalidArguments is returned when a required argument is missing.
var ErrInvalidArguments = errors.New("invalid arguments: name and version are required")

const (
	virtualRootName    = "virtual-root"
	virtualRootVersion = "0.0.0"
)

// Options configures the analyzer.
type Options struct {
	// Registry is the base URL of the npm-compatible registry.
	// Defaults to https://registry.npmjs.org.
	Registry string
	// Timeout applies per registry request. Defaults to 30s.
	Timeout time.Duration
	// Headers are merged over the default request headers, caller
	// entries winning.
	Headers map[string]string
}

// Analyzer resolves dependency trees against a registry. The metadata
// cache lives as long as the Analyzer, so repeated analyses of the same
// packages do not re-fetch the registry.
type Analyzer struct {
	log     *slog.Logger
	builder *tree.Builder
	planner *hoist.Planner
	cache   *cache.Metadata
}

func New(log *slog.Logger, opts Options, m metrics.Metrics) *Analyzer {
	client := registry.New(log, registry.Options{
		URL:     opts.Registry,
		Timeout: opts.Timeout,
		Headers: opts.Headers,
	}, m)
	c := cache.New(m)
	return &Analyzer{
		log:     log,
		builder: tree.NewBuilder(log, resolve.New(log, client, c)),
		planner: hoist.New(log),
		cache:   c,
	}
}

// PackageRequest identifies a root package to analyze. Version is a
// descriptor: an exact version, a dist-tag, or a range.
type PackageRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Key returns the "{name}@{descriptor}" identity of the request.
func (r PackageRequest) Key() string {
	return fmt.Sprintf("%s@%s", r.Name, r.Version)
}

// Result is the outcome of a single-package analysis.
type Result struct {
	DependencyTree   *tree.Node                     `json:"dependencyTree"`
	HoistedTree      *hoist.Tree                    `json:"hoistedTree"`
	FlatDependencies map[string]tree.FlatDependency `json:"flatDependencies"`
}

// MultiResult is the outcome of a multi-package analysis.
type MultiResult struct {
	Individual map[string]Result `json:"individual"`
	Combined   CombinedResult    `json:"combined"`
}

// CombinedResult is the merged view across all requested packages.
type CombinedResult struct {
	HoistedTree      *hoist.Tree                    `json:"hoistedTree"`
	FlatDependencies map[string]tree.FlatDependency `json:"flatDependencies"`
}

// Analyze resolves the transitive dependency closure of a single
// package and hoists it.
func (a *Analyzer) Analyze(ctx context.Context, name, version string) (Result, error) {
	if name == "" || version == "" {
		return Result{}, ErrInvalidArguments
	}

	a.log.Info("analyzing package", slog.String("package", name), slog.String("version", version))

	flat := tree.NewFlatIndex()
	root, err := a.builder.Build(ctx, name, version, flat, "")
	if err != nil {
		return Result{}, err
	}

	return Result{
		DependencyTree:   root,
		HoistedTree:      a.planner.Plan(root),
		FlatDependencies: flat.Entries(),
	}, nil
}

// AnalyzeAll analyzes each request individually, then merges the
// results under a synthetic virtual root to produce a combined hoisted
// tree and flat index. An empty request list yields a well-formed empty
// result.
func (a *Analyzer) AnalyzeAll(ctx context.Context, requests []PackageRequest) (MultiResult, error) {
	result := MultiResult{
		Individual: make(map[string]Result, len(requests)),
		Combined: CombinedResult{
			HoistedTree:      hoist.NewTree(),
			FlatDependencies: map[string]tree.FlatDependency{},
		},
	}
	if len(requests) == 0 {
		return result, nil
	}

	virtualRoot := &tree.Node{
		Name:             virtualRootName,
		Version:          virtualRootVersion,
		Dependencies:     map[string]*tree.Node{},
		PeerDependencies: map[string]string{},
	}

	for _, req := range requests {
		individual, err := a.Analyze(ctx, req.Name, req.Version)
		if err != nil {
			return MultiResult{}, err
		}
		key := req.Key()
		result.Individual[key] = individual
		virtualRoot.Dependencies[key] = individual.DependencyTree
		mergeFlat(result.Combined.FlatDependencies, individual.FlatDependencies)
	}

	combined := a.planner.Plan(virtualRoot)
	// The synthetic root is an implementation detail of planning and
	// never surfaces in the combined tree.
	delete(combined.Root, virtualRootName)
	result.Combined.HoistedTree = combined

	return result, nil
}

// mergeFlat unions src into dst, combining RequiredBy sets on matching
// keys.
func mergeFlat(dst map[string]tree.FlatDependency, src map[string]tree.FlatDependency) {
	for key, entry := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = entry
			continue
		}
		for _, path := range entry.RequiredBy {
			if idx, found := slices.BinarySearch(existing.RequiredBy, path); !found {
				existing.RequiredBy = slices.Insert(existing.RequiredBy, idx, path)
			}
		}
		dst[key] = existing
	}
}
