package stac

import (
	"bytes"
	"context"
	"mime"
	"net/url"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"stac-validator/types"
	"stac-validator/types/dataclasses"
	"stac-validator/types/helpers"
)

// target is an href to check, with the media type it claims to have.
type target struct {
	href      string
	mediaType string
}

func (r *run) checkLinks(ctx context.Context, object *dataclasses.StacObject) *dataclasses.LinkCheckResult {
	targets := make([]target, 0)
	for _, link := range links(object) {
		href, _ := helpers.GetValue[string](link, "href")
		targets = append(targets, target{href: href})
	}
	return r.checkTargets(ctx, object, targets)
}

// checkAssets also compares the declared type of each asset with what its
// content looks like.
func (r *run) checkAssets(ctx context.Context, object *dataclasses.StacObject) *dataclasses.LinkCheckResult {
	assets, err := helpers.GetValue[map[string]interface{}](object.Data, "assets")
	if err != nil {
		return dataclasses.NewLinkCheckResult()
	}

	keys := make([]string, 0, len(assets))
	for key := range assets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	targets := make([]target, 0, len(keys))
	for _, key := range keys {
		asset, ok := assets[key].(map[string]interface{})
		if !ok {
			continue
		}
		href, _ := helpers.GetValue[string](asset, "href")
		mediaType, _ := helpers.GetValue[string](asset, "type")
		targets = append(targets, target{href: href, mediaType: mediaType})
	}

	result := r.checkTargets(ctx, object, targets)
	if result.TypeMismatch == nil {
		result.TypeMismatch = []string{}
	}
	return result
}

func (r *run) checkTargets(ctx context.Context, object *dataclasses.StacObject, targets []target) *dataclasses.LinkCheckResult {
	result := dataclasses.NewLinkCheckResult()
	base := helpers.StripFragment(object.Path)

	var lock sync.Mutex
	group := new(errgroup.Group)
	group.SetLimit(r.options.Concurrency)

	for _, t := range targets {
		if !validHref(t.href) {
			result.FormatInvalid = append(result.FormatInvalid, t.href)
			continue
		}
		result.FormatValid = append(result.FormatValid, t.href)

		group.Go(func() error {
			location := helpers.ResolveLocation(base, t.href)
			// reachability and media type sniffing need the first bytes only
			content, err := r.validator.loader.FetchPrefix(ctx, location, types.MimeDetectionLimit)

			lock.Lock()
			defer lock.Unlock()

			if err != nil {
				r.logger.Warnf("%s: %s is not reachable: %v", object.Path, t.href, err)
				result.RequestInvalid = append(result.RequestInvalid, t.href)
				return nil
			}
			result.RequestValid = append(result.RequestValid, t.href)

			if t.mediaType != "" && !matchesMediaType(content, t.mediaType) {
				r.logger.Warnf("%s: %s is not %s", object.Path, t.href, t.mediaType)
				result.TypeMismatch = append(result.TypeMismatch, t.href)
			}
			return nil
		})
	}
	group.Wait()

	sort.Strings(result.RequestValid)
	sort.Strings(result.RequestInvalid)
	sort.Strings(result.TypeMismatch)
	return result
}

// validHref accepts relative references and absolute URLs with a host.
func validHref(href string) bool {
	if href == "" || strings.ContainsAny(href, " \t\r\n") {
		return false
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return false
	}
	if helpers.IsRemoteURL(href) {
		return parsed.Host != ""
	}
	return true
}

// matchesMediaType reports whether content sniffs as mediaType or as one of
// the more specific types derived from it.
func matchesMediaType(content []byte, mediaType string) bool {
	declared, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}

	for detected := types.DetectMimeTypeFromBuffer(bytes.NewBuffer(content)); detected != nil; detected = detected.Parent() {
		if detected.Is(declared) {
			return true
		}
	}
	return false
}
