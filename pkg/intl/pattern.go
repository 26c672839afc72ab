package intl

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholder matches #{intl::KEY} and #{intl::KEY::modifier}.
var placeholder = regexp.MustCompile(`#\{intl::([\w$+/]*)(?:::(\w+))?\}`)

// identifierClass replaces \i in regular expression sources.
const identifierClass = `(?:[A-Za-z_$][\w$]*)`

// Regexp is a regular expression in source form together with its flags, the
// shape match patterns are written in before they are compiled.
type Regexp struct {
	Source string
	Flags  string

	display string
}

// NewRegexp returns a pattern for source and flags. Nothing is compiled yet,
// so sources may still contain placeholders.
func NewRegexp(source, flags string) *Regexp {
	return &Regexp{Source: source, Flags: flags}
}

// String renders the pattern as a /source/flags literal. Patterns produced by
// HashRegexp keep the rendering of the pattern they were rewritten from.
func (r *Regexp) String() string {
	if r.display != "" {
		return r.display
	}
	return "/" + r.Source + "/" + r.Flags
}

// Compile builds a regexp.Regexp. The i, m and s flags map to Go's inline
// flags; g, y, u, d and v only affect iteration in the original syntax and are
// ignored.
func (r *Regexp) Compile() (*regexp.Regexp, error) {
	var inline []byte
	for _, f := range r.Flags {
		switch f {
		case 'i', 'm', 's':
			inline = append(inline, byte(f))
		case 'g', 'y', 'u', 'd', 'v':
		default:
			return nil, fmt.Errorf("unknown regexp flag %q in %s", f, r)
		}
	}
	src := r.Source
	if len(inline) > 0 {
		src = "(?" + string(inline) + ")" + src
	}
	return regexp.Compile(src)
}

// HashPattern rewrites every placeholder in s to the property access that
// minified code uses for the key: ".id", or `["id"]` when the identifier is
// not a valid bare property name. With the raw modifier the key itself is
// used instead of its hash.
func HashPattern(s string) string {
	return rewrite(s, false)
}

// HashRegexp is HashPattern for regular expressions. Placeholders expand to
// escaped property accesses, \i expands to an identifier pattern, and the
// result keeps the flags and String rendering of r.
func HashRegexp(r *Regexp) *Regexp {
	src := rewrite(r.Source, true)
	src = strings.ReplaceAll(src, `\i`, identifierClass)
	return &Regexp{Source: src, Flags: r.Flags, display: r.String()}
}

func rewrite(src string, forRegexp bool) string {
	return placeholder.ReplaceAllStringFunc(src, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		id := sub[1]
		if sub[2] != "raw" {
			id = HashKey(id)
		}

		bracket := strings.ContainsAny(id, "+/") || (id != "" && id[0] >= '0' && id[0] <= '9')
		switch {
		case bracket && forRegexp:
			return strings.ReplaceAll(`(?:\["`+id+`"\])`, "+", `\+`)
		case bracket:
			return `["` + id + `"]`
		case forRegexp:
			return `(?:\.` + id + `)`
		default:
			return "." + id
		}
	})
}
