// Package textnorm canonicalizes text copied from the source database into
// search documents, so equal strings index and facet identically.
// Pipeline order
// 1 drop invalid UTF-8 and control characters (tab/newline survive until step 4)
// 2 Unicode NFC
// 3 remove format characters (ZWJ, ZWNJ, BOM, soft hyphen)
// 4 collapse whitespace and trim
//
// Unlike a matching normalizer this keeps case, accents and compatibility
// forms: the output is displayed to users
package textnorm

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			runes.Remove(runes.Predicate(isDroppedControl)),
			norm.NFC,
			runes.Remove(runes.In(unicode.Cf)),
		)
	},
}

func isDroppedControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t'
}

func canonical(s string) string {
	s = strings.ToValidUTF8(s, "")
	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		return s
	}
	return out
}

// Line canonicalizes a single-line value such as a title or a name.
// Every whitespace run, line breaks included, becomes one space
func Line(s string) string {
	if s == "" {
		return s
	}
	return strings.Join(strings.Fields(canonical(s)), " ")
}

// Text canonicalizes free text such as a description. Whitespace runs become
// one space, except runs containing a line break which become one newline
func Text(s string) string {
	if s == "" {
		return s
	}
	return collapse(canonical(s))
}

func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWS, sawNL := false, false
	flush := func() {
		if !inWS {
			return
		}
		if sawNL {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
		inWS, sawNL = false, false
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			if r == '\n' || r == '\r' {
				sawNL = true
			}
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	return strings.Trim(b.String(), " \n")
}

// Ptr applies fn to *p, keeping nil as nil and mapping an empty result to nil
func Ptr(p *string, fn func(string) string) *string {
	if p == nil {
		return nil
	}
	v := fn(*p)
	if v == "" {
		return nil
	}
	return &v
}
