// Package cleanup turns raw chapter XHTML into a minified markup fragment.
package cleanup

import (
	"regexp"
	"strings"
)

// Mode selects how boilerplate elements are removed.
type Mode string

const (
	// ModeStructural removes elements by tokenizing the markup and tracking
	// element depth. Nested and repeated elements are handled.
	ModeStructural Mode = "structural"

	// ModeRegex removes elements with a non-greedy pattern over the whole
	// text. A nested element of the same tag ends the match early and leaves
	// the outer element's tail behind.
	ModeRegex Mode = "regex"
)

// Options configures a Cleaner.
type Options struct {
	SectionMarker string // substring of a <section> class marking boilerplate
	DivMarker     string // substring of a <div> id marking boilerplate
	Mode          Mode
}

var (
	xmlDeclRe       = regexp.MustCompile(`(?s)<\?xml.*?\?>`)
	defaultNSRe     = regexp.MustCompile(`\s+xmlns="[^"]*"`)
	langAttrRe      = regexp.MustCompile(`\s+(?:xml:)?lang="[^"]*"`)
	whitespaceRe    = regexp.MustCompile(`[\s\v]+`)
	interTagSpaceRe = regexp.MustCompile(`>[\s\v]+<`)
)

// Cleaner applies the fixed cleanup sequence. Safe for concurrent use.
type Cleaner struct {
	opts      Options
	sectionRe *regexp.Regexp
	divRe     *regexp.Regexp
}

// New compiles a Cleaner. An empty Mode means ModeStructural.
func New(opts Options) *Cleaner {
	if opts.Mode == "" {
		opts.Mode = ModeStructural
	}
	return &Cleaner{
		opts:      opts,
		sectionRe: elementPattern("section", "class", opts.SectionMarker),
		divRe:     elementPattern("div", "id", opts.DivMarker),
	}
}

// Clean runs every step in order and returns the trimmed fragment.
func (c *Cleaner) Clean(markup string) string {
	s := StripXMLDeclaration(markup)
	s = StripDefaultNamespace(s)
	s = StripLang(s)
	s = c.StripBoilerplate(s)
	s = CollapseWhitespace(s)
	return strings.TrimSpace(s)
}

// StripBoilerplate removes marked <section> elements, then marked <div> elements.
func (c *Cleaner) StripBoilerplate(s string) string {
	if c.opts.Mode == ModeRegex {
		s = c.sectionRe.ReplaceAllString(s, "")
		return c.divRe.ReplaceAllString(s, "")
	}
	s = StripElements(s, "section", "class", c.opts.SectionMarker)
	return StripElements(s, "div", "id", c.opts.DivMarker)
}

// StripXMLDeclaration removes <?xml ... ?> processing instructions.
func StripXMLDeclaration(s string) string {
	return xmlDeclRe.ReplaceAllString(s, "")
}

// StripDefaultNamespace removes xmlns="..." attributes. Prefixed namespace
// declarations such as xmlns:epub are kept.
func StripDefaultNamespace(s string) string {
	return defaultNSRe.ReplaceAllString(s, "")
}

// StripLang removes lang="..." and xml:lang="..." attributes.
func StripLang(s string) string {
	return langAttrRe.ReplaceAllString(s, "")
}

// CollapseWhitespace folds ASCII whitespace runs (space, \t, \n, \v, \f, \r)
// to a single space and drops whitespace that sits between two tags.
// Non-breaking and other Unicode spaces are content and are left alone.
func CollapseWhitespace(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	return interTagSpaceRe.ReplaceAllString(s, "><")
}

func elementPattern(tag, attr, marker string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<` + tag + `\b[^>]*\b` + attr + `="[^"]*` +
		regexp.QuoteMeta(marker) + `[^"]*"[^>]*>.*?</` + tag + `>`)
}
