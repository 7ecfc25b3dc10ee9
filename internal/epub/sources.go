package epub

import (
	"io"
	"path"
	"strings"

	"github.com/dgallion1/epubhtml/internal/book"
	"golang.org/x/net/html"
)

// licensePatterns mark a Project Gutenberg license page (matched lowercased).
var licensePatterns = []string{
	"start of the project gutenberg license",
	"end of the project gutenberg license",
	"full project gutenberg license",
	"gutenberg.org/license",
}

// ContentSources returns the spine documents whose base name contains marker
// and whose extension matches ext, in reading order. A document whose text,
// after clean has run over it, reads as a Project Gutenberg license page is
// left out and its name returned in skipped. A nil clean checks the raw text.
func (a *Archive) ContentSources(marker, ext string, clean func(string) string) (sources []book.SourceFile, skipped []string) {
	for _, name := range a.spine {
		base := path.Base(name)
		if !strings.Contains(base, marker) || !strings.EqualFold(path.Ext(base), ext) {
			continue
		}
		if data, err := a.read(name); err == nil {
			markup := string(data)
			if clean != nil {
				markup = clean(markup)
			}
			if IsLicensePage(markup) {
				skipped = append(skipped, base)
				continue
			}
		}
		// Read errors surface again when the chapter is extracted.
		sources = append(sources, book.SourceFile{
			Path:   a.path + "!/" + name,
			Name:   base,
			Opener: a.opener(name),
		})
	}
	return sources, skipped
}

func (a *Archive) opener(name string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return a.open(name)
	}
}

// IsLicensePage reports whether the visible text of markup is a Project
// Gutenberg license page.
func IsLicensePage(markup string) bool {
	text := strings.ToLower(visibleText(markup))
	for _, pat := range licensePatterns {
		if strings.Contains(text, pat) {
			return true
		}
	}
	return strings.Contains(text, "project gutenberg") && strings.Contains(text, "terms of use")
}

// visibleText joins the text tokens of markup, skipping script and style bodies.
func visibleText(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.SelfClosingTagToken:
			z.NextIsNotRawText()
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "script" || string(name) == "style" {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); (string(name) == "script" || string(name) == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}
