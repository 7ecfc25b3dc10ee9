package cleanup

import (
	"strings"

	"golang.org/x/net/html"
)

// StripElements removes every <tag> element whose attr value contains marker,
// together with its subtree. The markup is tokenized rather than parsed into
// a tree, so bytes outside the removed spans come back exactly as given.
// An element left unclosed at end of input is kept.
func StripElements(markup, tag, attr, marker string) string {
	z := html.NewTokenizer(strings.NewReader(markup))

	var out strings.Builder
	pos := 0     // bytes consumed by the tokenizer
	written := 0 // bytes of markup already copied to out
	spanStart := 0
	depth := 0 // open <tag> elements inside the current span

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		start := pos
		pos += len(z.Raw())

		if tt == html.SelfClosingTagToken {
			// <script/>, <title/> and friends have no body in XHTML; without
			// this the tokenizer would treat the rest of the input as their text.
			z.NextIsNotRawText()
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != tag {
				continue
			}
			if depth > 0 {
				if tt == html.StartTagToken {
					depth++
				}
				continue
			}
			if !hasAttr || !attrContains(z, attr, marker) {
				continue
			}
			if tt == html.SelfClosingTagToken {
				out.WriteString(markup[written:start])
				written = pos
				continue
			}
			spanStart = start
			depth = 1

		case html.EndTagToken:
			if depth == 0 {
				continue
			}
			name, _ := z.TagName()
			if string(name) != tag {
				continue
			}
			depth--
			if depth == 0 {
				out.WriteString(markup[written:spanStart])
				written = pos
			}
		}
	}

	if written == 0 {
		return markup
	}
	out.WriteString(markup[written:])
	return out.String()
}

func attrContains(z *html.Tokenizer, attr, marker string) bool {
	for {
		key, val, more := z.TagAttr()
		if string(key) == attr && strings.Contains(string(val), marker) {
			return true
		}
		if !more {
			return false
		}
	}
}
