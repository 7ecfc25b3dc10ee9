package assemble

import (
	"regexp"
	"strings"
)

var markupTagRe = regexp.MustCompile(`<[^>]*>`)

// WordCount counts whitespace-separated words in document once tags are
// dropped. Stylesheet and title text count too; it is a rough size figure.
func WordCount(document []byte) int {
	if len(document) == 0 {
		return 0
	}
	return len(strings.Fields(markupTagRe.ReplaceAllString(string(document), "")))
}
