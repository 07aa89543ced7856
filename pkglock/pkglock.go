// Package pkglock extracts analyzable package requests from an npm
// package-lock.json file.
package pkglock

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/denghongcai/npm-dep-tree-analyzer/analyzer"
)

type lockFile struct {
	Name     string                 `json:"name"`
	Version  string                 `json:"version"`
	Packages map[string]lockPackage `json:"packages"`
}

type lockPackage struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Resolved string `json:"resolved"`
}

// Parse reads an npm package-lock.json (v2/v3) and returns the unique
// registry packages it pins, sorted by "name@version", ready to feed to
// the analyzer. Packages that do not come from a registry (local paths,
// git specifiers) are skipped.
func Parse(r io.Reader) ([]analyzer.PackageRequest, error) {
	var lock lockFile
	if err := json.NewDecoder(r).Decode(&lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}

	seen := make(map[string]analyzer.PackageRequest)
	for installPath, pkg := range lock.Packages {
		// The "" entry is the project itself.
		if installPath == "" {
			continue
		}
		if pkg.Resolved == "" ||
			strings.HasPrefix(pkg.Resolved, "file:") ||
			strings.HasPrefix(pkg.Resolved, "git+") {
			continue
		}

		name := pkg.Name
		if name == "" {
			name = nameFromInstallPath(installPath)
		}
		if name == "" || pkg.Version == "" {
			continue
		}

		req := analyzer.PackageRequest{Name: name, Version: pkg.Version}
		seen[req.Key()] = req
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	requests := make([]analyzer.PackageRequest, len(keys))
	for i, key := range keys {
		requests[i] = seen[key]
	}
	return requests, nil
}

// nameFromInstallPath recovers a package name from an install path like
// "node_modules/@scope/pkg" when the lock entry omits the name.
func nameFromInstallPath(p string) string {
	idx := strings.LastIndex(p, "node_modules/")
	if idx == -1 {
		return p
	}
	return p[idx+len("node_modules/"):]
}
