// Package profanity scans submission text against a word list.
package profanity

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options configures a Filter.
type Options struct {
	// StrictMode matches list words inside longer words.
	StrictMode bool
	// CustomWords extends the built-in list.
	CustomWords []string
	// WhitelistedWords are never reported, either as list entries or as
	// the enclosing word of a partial match.
	WhitelistedWords []string
}

// Violation is one disallowed term found in the payload.
type Violation struct {
	Path string
	Word string
}

// Result is the outcome of scanning a payload.
type Result struct {
	Violations []Violation
	// Filtered is the payload with every violation masked.
	Filtered map[string]any
}

// Valid reports whether no violation was found.
func (r Result) Valid() bool { return len(r.Violations) == 0 }

// Filter matches text against a compiled word list.
type Filter struct {
	strict    bool
	whitelist map[string]struct{}
	pattern   *regexp.Regexp
}

// New compiles a filter. A filter whose list is emptied by the whitelist
// never reports anything.
func New(opts Options) *Filter {
	f := &Filter{strict: opts.StrictMode, whitelist: make(map[string]struct{})}
	for _, w := range opts.WhitelistedWords {
		if w = normalize(w); w != "" {
			f.whitelist[w] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	words := make([]string, 0, len(defaultWords)+len(opts.CustomWords))
	for _, list := range [][]string{defaultWords, opts.CustomWords} {
		for _, w := range list {
			w = normalize(w)
			if w == "" {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			if _, ok := f.whitelist[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return f
	}
	// Longest first so alternation prefers "fucking" over "fuck".
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	expr := "(?i)(?:" + strings.Join(quoted, "|") + ")"
	if !f.strict {
		expr = `(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`
	}
	f.pattern = regexp.MustCompile(expr)
	return f
}

func normalize(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

// matches returns the byte ranges of reportable matches in text.
func (f *Filter) matches(text string) [][]int {
	if f == nil || f.pattern == nil || text == "" {
		return nil
	}
	found := f.pattern.FindAllStringIndex(text, -1)
	if len(found) == 0 || len(f.whitelist) == 0 {
		return found
	}
	out := found[:0]
	for _, loc := range found {
		if _, ok := f.whitelist[normalize(enclosingWord(text, loc[0], loc[1]))]; ok {
			continue
		}
		out = append(out, loc)
	}
	return out
}

// enclosingWord widens [start,end) to the surrounding run of letters and digits.
func enclosingWord(text string, start, end int) string {
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !isWordRune(r) {
			break
		}
		start -= size
	}
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(r) {
			break
		}
		end += size
	}
	return text[start:end]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Find returns the disallowed terms in text, in order of appearance.
func (f *Filter) Find(text string) []string {
	locs := f.matches(text)
	if len(locs) == 0 {
		return nil
	}
	out := make([]string, len(locs))
	for i, loc := range locs {
		out[i] = strings.ToLower(text[loc[0]:loc[1]])
	}
	return out
}

// Mask replaces each disallowed term with asterisks of the same rune length.
func (f *Filter) Mask(text string) string {
	locs := f.matches(text)
	if len(locs) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		b.WriteString(text[last:loc[0]])
		b.WriteString(strings.Repeat("*", utf8.RuneCountInString(text[loc[0]:loc[1]])))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// FilterData scans every string leaf of data. The returned Filtered copy
// has all violations masked; data itself is not modified.
func (f *Filter) FilterData(data map[string]any) Result {
	res := Result{}
	filtered, _ := f.walk("", data, &res).(map[string]any)
	if filtered == nil {
		filtered = map[string]any{}
	}
	res.Filtered = filtered
	return res
}

func (f *Filter) walk(path string, v any, res *Result) any {
	switch typed := v.(type) {
	case string:
		for _, word := range f.Find(typed) {
			res.Violations = append(res.Violations, Violation{Path: path, Word: word})
		}
		return f.Mask(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			child := key
			if path != "" {
				child = path + "." + key
			}
			out[key] = f.walk(child, typed[key], res)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = f.walk(path+"["+strconv.Itoa(i)+"]", val, res)
		}
		return out
	default:
		return v
	}
}
