// Package print renders dependency trees, hoisted trees, and flat
// indexes for terminal output.
package print

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/denghongcai/npm-dep-tree-analyzer/hoist"
	"github.com/denghongcai/npm-dep-tree-analyzer/tree"
)

// Tree writes the logical dependency tree with one indented line per
// node.
func Tree(w io.Writer, n *tree.Node) {
	writeNode(w, n, 0)
}

func writeNode(w io.Writer, n *tree.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s@%s", indent, n.Name, n.Version)
	if len(n.PeerDependencies) > 0 {
		peers := make([]string, 0, len(n.PeerDependencies))
		for _, name := range slices.Sorted(maps.Keys(n.PeerDependencies)) {
			peers = append(peers, fmt.Sprintf("%s@%s", name, n.PeerDependencies[name]))
		}
		fmt.Fprintf(w, " (peers: %s)", strings.Join(peers, ", "))
	}
	fmt.Fprintln(w)
	for _, name := range slices.Sorted(maps.Keys(n.Dependencies)) {
		writeNode(w, n.Dependencies[name], depth+1)
	}
}

// Hoisted writes the hoisted tree: the flat root level first, then each
// nested bucket.
func Hoisted(w io.Writer, t *hoist.Tree) {
	fmt.Fprintln(w, "root:")
	for _, name := range slices.Sorted(maps.Keys(t.Root)) {
		d := t.Root[name]
		fmt.Fprintf(w, "  %s@%s\n", d.Name, d.Version)
	}
	for _, parent := range slices.Sorted(maps.Keys(t.Nested)) {
		fmt.Fprintf(w, "%s:\n", parent)
		bucket := t.Nested[parent]
		for _, name := range slices.Sorted(maps.Keys(bucket)) {
			d := bucket[name]
			fmt.Fprintf(w, "  %s@%s\n", d.Name, d.Version)
		}
	}
}

// Flat writes the flat dependency index as a table of package versus
// the parent paths that demanded it.
func Flat(w io.Writer, flat map[string]tree.FlatDependency) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tREQUIRED BY")
	for _, key := range slices.Sorted(maps.Keys(flat)) {
		entry := flat[key]
		fmt.Fprintf(tw, "%s\t%s\n", key, strings.Join(entry.RequiredBy, ", "))
	}
	tw.Flush()
}
