package registry

import "fmt"

// LatestTag is the dist-tag consulted when no version is requested.
const LatestTag = "latest"

// Packument is the registry document describing every published version of
// a package. Only the fields the resolver needs are decoded.
type Packument struct {
	Name     string                 `json:"name"`
	DistTags map[string]string      `json:"dist-tags"`
	Versions map[string]VersionInfo `json:"versions"`
}

// VersionInfo describes a single published version.
type VersionInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Dist    Dist   `json:"dist"`
}

// Dist locates the version's tarball and its published digests.
type Dist struct {
	Tarball string `json:"tarball"`
	// Shasum is the hex sha1 of the tarball.
	Shasum string `json:"shasum,omitempty"`
	// Integrity is a subresource-integrity string such as "sha512-<base64>".
	Integrity string `json:"integrity,omitempty"`
}

// Latest returns the version the "latest" dist-tag points to.
func (p *Packument) Latest() (string, error) {
	return p.Tag(LatestTag)
}

// Tag returns the version a dist-tag points to.
func (p *Packument) Tag(tag string) (string, error) {
	version, ok := p.DistTags[tag]
	if !ok || version == "" {
		return "", fmt.Errorf("%s: dist-tag %q: %w", p.Name, tag, ErrVersionNotFound)
	}
	return version, nil
}

// Version returns metadata for an exact version.
func (p *Packument) Version(version string) (*VersionInfo, error) {
	info, ok := p.Versions[version]
	if !ok {
		return nil, fmt.Errorf("%s@%s: %w", p.Name, version, ErrVersionNotFound)
	}
	if info.Dist.Tarball == "" {
		return nil, fmt.Errorf("%s@%s: no tarball URL in registry metadata: %w", p.Name, version, ErrVersionNotFound)
	}
	return &info, nil
}
