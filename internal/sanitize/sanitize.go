// Package sanitize strips script markup from submitted values.
package sanitize

import (
	"regexp"
	"time"

	"github.com/dlclark/regexp2"
	log "github.com/sirupsen/logrus"
)

// scriptBlock matches a complete <script>...</script> element. The
// lookahead needs regexp2; RE2 has no equivalent.
var scriptBlock = regexp2.MustCompile(`<script\b[^<]*(?:(?!<\/script>)<[^<]*)*<\/script>`, regexp2.IgnoreCase)

var (
	danglingScript = regexp.MustCompile(`(?i)</?script\b[^>]*>?`)
	htmlTag        = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	inlineHandler  = regexp.MustCompile(`(?i)\son\w+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	jsScheme       = regexp.MustCompile(`(?i)javascript\s*:`)
)

func init() {
	scriptBlock.MatchTimeout = 250 * time.Millisecond
}

// String removes script elements and leftover script tags from s, and
// inline event handlers and javascript: URLs from any remaining tags.
// Passes repeat until the value stops changing, so markup assembled by
// an earlier removal is stripped too.
func String(s string) string {
	if s == "" {
		return s
	}
	for {
		out := strip(s)
		if out == s {
			return out
		}
		s = out
	}
}

// strip runs one removal pass. It never grows its input.
func strip(s string) string {
	out, errReplace := scriptBlock.Replace(s, "", -1, -1)
	if errReplace != nil {
		log.WithError(errReplace).Warn("sanitize: script pattern timed out")
		out = s
	}
	out = danglingScript.ReplaceAllString(out, "")
	return htmlTag.ReplaceAllStringFunc(out, stripTagAttributes)
}

func stripTagAttributes(tag string) string {
	tag = inlineHandler.ReplaceAllString(tag, "")
	return jsScheme.ReplaceAllString(tag, "")
}

// Value returns a copy of v with String applied to every string leaf of
// maps and slices. Other values are returned unchanged.
func Value(v any) any {
	switch typed := v.(type) {
	case string:
		return String(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			out[key] = Value(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = Value(val)
		}
		return out
	default:
		return v
	}
}

// Map sanitizes a submission payload.
func Map(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return Value(data).(map[string]any)
}
