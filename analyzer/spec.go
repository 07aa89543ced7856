package analyzer

import "strings"

// ParseRequest parses a "name@descriptor" specification string. A bare
// name defaults to the "latest" dist-tag. Scoped packages such as
// "@types/node@20.0.0" keep the scope as part of the name.
func ParseRequest(spec string) PackageRequest {
	spec = strings.TrimSpace(spec)
	if strings.HasPrefix(spec, "@") {
		if idx := strings.Index(spec[1:], "@"); idx >= 0 {
			return PackageRequest{
				Name:    spec[:idx+1],
				Version: spec[idx+2:],
			}
		}
		return PackageRequest{Name: spec, Version: "latest"}
	}
	name, version, ok := strings.Cut(spec, "@")
	if !ok || version == "" {
		return PackageRequest{Name: name, Version: "latest"}
	}
	return PackageRequest{Name: name, Version: version}
}
