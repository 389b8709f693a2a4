package client

// URLBuilder constructs URLs for a registry.
type URLBuilder interface {
	Registry(name, version string) string
	Download(name, version string) string
	Documentation(name, version string) string
	PURL(name, version string) string
}

// BaseURLs provides a default URLBuilder implementation.
type BaseURLs struct {
	RegistryFn      func(name, version string) string
	DownloadFn      func(name, version string) string
	DocumentationFn func(name, version string) string
	PURLFn          func(name, version string) string
}

func (b *BaseURLs) Registry(name, version string) string {
	return call(b.RegistryFn, name, version)
}

func (b *BaseURLs) Download(name, version string) string {
	return call(b.DownloadFn, name, version)
}

func (b *BaseURLs) Documentation(name, version string) string {
	return call(b.DocumentationFn, name, version)
}

// PURL falls back to a generic package URL.
func (b *BaseURLs) PURL(name, version string) string {
	if b.PURLFn != nil {
		return b.PURLFn(name, version)
	}
	if version == "" {
		return "pkg:generic/" + name
	}
	return "pkg:generic/" + name + "@" + version
}

func call(fn func(name, version string) string, name, version string) string {
	if fn == nil {
		return ""
	}
	return fn(name, version)
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "registry", "download", "docs", and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	result := make(map[string]string)
	for key, v := range map[string]string{
		"registry": urls.Registry(name, version),
		"download": urls.Download(name, version),
		"docs":     urls.Documentation(name, version),
		"purl":     urls.PURL(name, version),
	} {
		if v != "" {
			result[key] = v
		}
	}
	return result
}
