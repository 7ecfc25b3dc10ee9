package chapter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/epubhtml/internal/book"
)

var (
	headingRe       = regexp.MustCompile(`(?is)<h[1-6]\b[^>]*>(.*?)</h[1-6]>`)
	tagRe           = regexp.MustCompile(`<[^>]*>`)
	chapterMarkerRe = regexp.MustCompile(`(?i)^chapter\s+(\d+\.?)`)
)

// HeadingText returns the text of the first <h1>..<h6> element in content,
// with any inline tags dropped. The text is not entity-decoded.
func HeadingText(content string) (string, bool) {
	m := headingRe.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	text := strings.TrimSpace(tagRe.ReplaceAllString(m[1], ""))
	return text, text != ""
}

// Title derives the chapter title at position from cleaned content.
func Title(content string, position int) string {
	heading, ok := HeadingText(content)
	if !ok {
		return truncate(fmt.Sprintf("Chapter %d", position))
	}

	title := chapterMarkerRe.ReplaceAllString(heading, "Chapter $1")
	if !strings.HasPrefix(title, "Chapter") {
		title = fmt.Sprintf("Chapter %d - %s", position, title)
	}
	return truncate(title)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= book.MaxTitleLen {
		return s
	}
	return string(r[:book.MaxTitleLen])
}
