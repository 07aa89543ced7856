// Package tree builds the logical dependency tree of a package and
// records every (name, version) occurrence in a flat index.
package tree

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/denghongcai/npm-dep-tree-analyzer/resolve"
)

// Node is a node in the logical dependency tree. The same
// (name, version) pair may appear in many subtrees; each occurrence is
// an independent node.
type Node struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// Dependencies maps each declared dependency name to its resolved
	// child node.
	Dependencies map[string]*Node `json:"dependencies"`
	// PeerDependencies preserves the declared peer descriptors
	// literally. Peers are never expanded into child nodes.
	PeerDependencies map[string]string `json:"peerDependencies"`
}

// Key returns the "{name}@{version}" identity of the node.
func (n *Node) Key() string {
	return fmt.Sprintf("%s@%s", n.Name, n.Version)
}

// FlatDependency is one entry per unique (name, version) pair observed
// across a build, with every parent path that demanded it.
type FlatDependency struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	RequiredBy []string `json:"requiredBy"`
}

// FlatIndex is a concurrency-safe index of flat dependencies keyed by
// "{name}@{version}".
type FlatIndex struct {
	mu      sync.Mutex
	entries map[string]*FlatDependency
}

func NewFlatIndex() *FlatIndex {
	return &FlatIndex{
		entries: make(map[string]*FlatDependency),
	}
}

// Add records an occurrence of name@version under the given parent
// path. Paths are deduplicated and kept sorted.
func (i *FlatIndex) Add(name, version, parentPath string) {
	key := fmt.Sprintf("%s@%s", name, version)
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.entries[key]
	if !ok {
		i.entries[key] = &FlatDependency{
			Name:       name,
			Version:    version,
			RequiredBy: []string{parentPath},
		}
		return
	}
	if idx, found := slices.BinarySearch(entry.RequiredBy, parentPath); !found {
		entry.RequiredBy = slices.Insert(entry.RequiredBy, idx, parentPath)
	}
}

// Entries returns a snapshot copy of the index.
func (i *FlatIndex) Entries() map[string]FlatDependency {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make(map[string]FlatDependency, len(i.entries))
	for key, entry := range i.entries {
		out[key] = FlatDependency{
			Name:       entry.Name,
			Version:    entry.Version,
			RequiredBy: slices.Clone(entry.RequiredBy),
		}
	}
	return out
}

// Builder constructs logical dependency trees.
type Builder struct {
	log      *slog.Logger
	resolver *resolve.Resolver
}

func NewBuilder(log *slog.Logger, resolver *resolve.Resolver) *Builder {
	return &Builder{
		log:      log,
		resolver: resolver,
	}
}

// Build resolves (name, descriptor) and recursively expands its
// dependencies into a tree, registering every occurrence in flat.
// parentPath is empty for a top-level package. Sibling children resolve
// concurrently; the first failure cancels the rest of the build.
func (b *Builder) Build(ctx context.Context, name, descriptor string, flat *FlatIndex, parentPath string) (*Node, error) {
	return b.build(ctx, name, descriptor, flat, parentPath, map[string]bool{})
}

// active holds the "{name}@{version}" keys on the path from the root to
// the current node. A revisit means the declared graph is cyclic; the
// node is truncated to guarantee termination.
func (b *Builder) build(ctx context.Context, name, descriptor string, flat *FlatIndex, parentPath string, active map[string]bool) (*Node, error) {
	info, err := b.resolver.Resolve(ctx, name, descriptor)
	if err != nil {
		return nil, err
	}

	node := &Node{
		Name:             info.Name,
		Version:          info.Version,
		Dependencies:     map[string]*Node{},
		PeerDependencies: maps.Clone(info.PeerDependencies),
	}

	requiredBy := parentPath
	if requiredBy == "" {
		requiredBy = "root"
	}
	flat.Add(node.Name, node.Version, requiredBy)

	key := node.Key()
	if active[key] {
		b.log.Debug("dependency cycle detected, truncating", slog.String("package", key), slog.String("parent", parentPath))
		return node, nil
	}
	active = maps.Clone(active)
	active[key] = true

	currentPath := key
	if parentPath != "" {
		currentPath = parentPath + " > " + key
	}

	// Sorted order keeps builds, and therefore hoisting plans,
	// reproducible across runs.
	childNames := slices.Sorted(maps.Keys(info.Dependencies))
	children := make([]*Node, len(childNames))

	g, gctx := errgroup.WithContext(ctx)
	for i, childName := range childNames {
		g.Go(func() error {
			child, err := b.build(gctx, childName, info.Dependencies[childName], flat, currentPath, active)
			if err != nil {
				return fmt.Errorf("failed to resolve %s@%s: %w", childName, info.Dependencies[childName], err)
			}
			children[i] = child
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, childName := range childNames {
		node.Dependencies[childName] = children[i]
	}
	return node, nil
}
