package inline

import "net/url"

// ResolveURL resolves ref against baseURI, per spec.md §4.3's "relative
// URLs resolved against the element's baseURI or the document's
// baseURI." Malformed URLs report ok=false so callers leave them
// untouched rather than registering garbage as an asset.
func ResolveURL(baseURI, ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	base, err := url.Parse(baseURI)
	if err != nil {
		return ref, true // no base to resolve against; pass the ref through as absolute
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(rel).String(), true
}
