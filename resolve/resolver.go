// Package resolve reduces a version descriptor (exact version, dist-tag
// or range) to a concrete published package version.
package resolve

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/denghongcai/npm-dep-tree-analyzer/cache"
	"github.com/denghongcai/npm-dep-tree-analyzer/models"
	"github.com/denghongcai/npm-dep-tree-analyzer/registry"
	"github.com/denghongcai/npm-dep-tree-analyzer/semver"
)

type Resolver struct {
	log    *slog.Logger
	client *registry.Client
	cache  *cache.Metadata
}

func New(log *slog.Logger, client *registry.Client, c *cache.Metadata) *Resolver {
	return &Resolver{
		log:    log,
		client: client,
		cache:  c,
	}
}

// Resolve returns the concrete PackageInfo for (name, descriptor).
// Selection order is exact version, then dist-tag, then the greatest
// version satisfying the descriptor as a range. The result is memoized
// under the descriptor as asked, not under the resolved version.
func (r *Resolver) Resolve(ctx context.Context, name, descriptor string) (models.PackageInfo, error) {
	return r.cache.GetOrResolve(ctx, name, descriptor, func(ctx context.Context) (models.PackageInfo, error) {
		doc, err := r.client.Get(ctx, name)
		if err != nil {
			return models.PackageInfo{}, err
		}

		version, ok := r.selectVersion(doc, descriptor)
		if !ok {
			return models.PackageInfo{}, &registry.NotFoundError{
				Name:       name,
				Descriptor: descriptor,
				Reason:     "no matching version found",
			}
		}

		record := doc.Versions[version]
		r.log.Debug("resolved version", slog.String("package", name), slog.String("descriptor", descriptor), slog.String("version", version))

		return models.PackageInfo{
			Name:             name,
			Version:          version,
			Dependencies:     cloneOrEmpty(record.Dependencies),
			DevDependencies:  cloneOrEmpty(record.DevDependencies),
			PeerDependencies: cloneOrEmpty(record.PeerDependencies),
		}, nil
	})
}

// selectVersion picks a concrete version for the descriptor. The order
// matters: a dist-tag whose name also parses as a range wins over the
// range interpretation.
func (r *Resolver) selectVersion(doc models.Document, descriptor string) (string, bool) {
	if _, ok := doc.Versions[descriptor]; ok {
		return descriptor, true
	}
	if tagged, ok := doc.DistTags[descriptor]; ok {
		if _, exists := doc.Versions[tagged]; exists {
			return tagged, true
		}
		return "", false
	}
	if semver.ValidRange(descriptor) {
		versions := slices.Collect(maps.Keys(doc.Versions))
		if winner, ok := semver.MaxSatisfying(versions, descriptor); ok {
			return winner, true
		}
	}
	return "", false
}

func cloneOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}
