package inline

import (
	"regexp"
	"strconv"
	"strings"
)

// cssURLPattern matches CSS url(...) references, capturing an optional
// quote character and the URL body, adapted from spec.md §4.3 step 8's
// `url\(\s*(['"]?)([^'"\)]+)\1\s*\)`: RE2 has no backreferences, so the
// closing quote is a separate optional group not required to match the
// opening one.
var cssURLPattern = regexp.MustCompile(`url\(\s*(['"]?)([^'"\)]+)(['"]?)\s*\)`)

// RewriteCSSURLs scans css for url(...) references, skips data: URLs and
// already-rewritten asset: references, resolves everything else against
// baseURI, registers a new asset via register, and rewrites the
// reference to url("asset:<id>"), keeping the original quote character
// (an unquoted reference gets double quotes).
// Malformed URLs (ones resolve can't make sense of) pass through
// unchanged and are not registered, per spec.md §4.3's URL resolution
// rule.
func RewriteCSSURLs(css, baseURI string, register func(absoluteURL string) (id uint32, ok bool)) string {
	return cssURLPattern.ReplaceAllStringFunc(css, func(match string) string {
		groups := cssURLPattern.FindStringSubmatch(match)
		quote, raw := groups[1], groups[2]

		if strings.HasPrefix(raw, "data:") {
			return match
		}
		if strings.HasPrefix(raw, "asset:") {
			return match
		}

		abs, ok := ResolveURL(baseURI, raw)
		if !ok {
			return match
		}
		id, ok := register(abs)
		if !ok {
			return match
		}

		q := quote
		if q == "" {
			q = `"`
		}
		return "url(" + q + "asset:" + strconv.FormatUint(uint64(id), 10) + q + ")"
	})
}
