package helpers

import (
	"net/url"
	"path/filepath"
	"strings"
)

// StripFragment drops everything from the first '#'. Schema ids such as
// ".../item.json#" and the URL they were fetched from compare equal after it.
func StripFragment(uri string) string {
	if index := strings.Index(uri, "#"); index >= 0 {
		return uri[:index]
	}
	return uri
}

// IsRemoteURL reports whether uri is an http(s) URL.
func IsRemoteURL(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsStorageURL reports whether uri addresses an object store (s3://bucket/key).
func IsStorageURL(uri string) bool {
	return strings.HasPrefix(strings.ToLower(uri), "s3://")
}

// ResolveLocation resolves href relative to the location of the document
// it was found in. Locations are URLs, s3:// URIs or filesystem paths.
func ResolveLocation(base, href string) string {
	if href == "" {
		return base
	}

	hrefURL, err := url.Parse(href)
	if err == nil && hrefURL.IsAbs() && len(hrefURL.Scheme) > 1 {
		return href
	}
	if filepath.IsAbs(href) {
		return filepath.Clean(href)
	}

	if IsRemoteURL(base) || IsStorageURL(base) || strings.HasPrefix(base, "file://") {
		baseURL, err := url.Parse(base)
		if err != nil || hrefURL == nil {
			return href
		}
		return baseURL.ResolveReference(hrefURL).String()
	}

	return filepath.Join(filepath.Dir(base), filepath.FromSlash(href))
}

// NormalizeLocation gives one spelling per document: fragments are dropped
// and relative filesystem paths become absolute.
func NormalizeLocation(uri string) string {
	uri = StripFragment(uri)
	if uri == "" || IsRemoteURL(uri) || IsStorageURL(uri) || strings.HasPrefix(strings.ToLower(uri), "file://") {
		return uri
	}

	if absolute, err := filepath.Abs(uri); err == nil {
		return absolute
	}
	return filepath.Clean(uri)
}
