package stac

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/mod/semver"

	"stac-validator/types/config"
	"stac-validator/types/dataclasses"
	"stac-validator/types/helpers"
)

var ErrInvalidVersion = errors.New("invalid stac_version")

// firstSpecLayout is the first release published under
// {base}/v{version}/{type}-spec/json-schema/{type}.json.
const firstSpecLayout = "v1.0.0-beta.2"

// SupportedVersions are the STAC releases whose schemas are known to resolve.
var SupportedVersions = []string{
	"0.8.0", "0.8.1", "0.9.0",
	"1.0.0-beta.1", "1.0.0-beta.2", "1.0.0-rc.1", "1.0.0-rc.2", "1.0.0-rc.3", "1.0.0-rc.4",
	"1.0.0", "1.1.0",
}

// CanonicalVersion returns version in semver form ("1.0.0" -> "v1.0.0").
func CanonicalVersion(version string) (string, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return "", fmt.Errorf("%w: missing", ErrInvalidVersion)
	}

	canonical := "v" + strings.TrimPrefix(version, "v")
	if !semver.IsValid(canonical) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	return canonical, nil
}

// CoreSchemaURL is the location of the core schema of stacType at version.
// Releases before 1.0.0-beta.2 are served from the legacy mirror.
func CoreSchemaURL(schemasConfig *config.SchemasConfig, version string, stacType dataclasses.StacType) (string, error) {
	canonical, err := CanonicalVersion(version)
	if err != nil {
		return "", err
	}

	name := string(stacType)
	if semver.Compare(canonical, firstSpecLayout) >= 0 {
		return fmt.Sprintf("%s/%s/%s-spec/json-schema/%s.json", schemasConfig.StacBaseURL, canonical, name, name), nil
	}
	return fmt.Sprintf("%s/%s/%s.json", schemasConfig.LegacyBaseURL, canonical, name), nil
}

// ExtensionSchemaURL locates the schema of one stac_extensions entry of the
// object at objectPath. URLs are used as they are, relative schema paths are
// resolved against the object, and bare names (pre-1.0 style, e.g. "eo") are
// looked up on the legacy mirror.
func ExtensionSchemaURL(schemasConfig *config.SchemasConfig, extension, version, objectPath string) (string, error) {
	extension = strings.TrimSpace(extension)
	if extension == "" {
		return "", errors.New("empty extension")
	}

	parsed, err := url.Parse(extension)
	if err == nil && parsed.IsAbs() && len(parsed.Scheme) > 1 {
		return extension, nil
	}

	if strings.HasSuffix(strings.ToLower(extension), ".json") {
		return helpers.ResolveLocation(objectPath, extension), nil
	}

	canonical, err := CanonicalVersion(version)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/extension/%s.json", schemasConfig.LegacyBaseURL, canonical, extension), nil
}
