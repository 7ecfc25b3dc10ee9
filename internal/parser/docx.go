package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
	"golang.org/x/net/html"
)

// DOCXParser renders .docx chapter files as a flat run of <hN> and <p> elements.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (string, error) {
	// go-docx needs a ReaderAt+size, so spool to a temp file.
	tmp, err := os.CreateTemp("", "epubhtml-docx-*.docx")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return "", fmt.Errorf("spool %s: %w", filename, err)
	}

	doc, err := docx.Parse(tmp, size)
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var out strings.Builder
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := paragraphText(para)
		if text == "" {
			continue
		}
		tag := "p"
		if level := styleHeadingLevel(para); level > 0 {
			tag = fmt.Sprintf("h%d", level)
		}
		fmt.Fprintf(&out, "<%s>%s</%s>\n", tag, html.EscapeString(text), tag)
	}
	return out.String(), nil
}

// styleHeadingLevel maps "Heading1" / "heading 1" paragraph styles to 1..6.
func styleHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if len(style) != len("heading1") || !strings.HasPrefix(style, "heading") {
		return 0
	}
	level := int(style[len(style)-1] - '0')
	if level < 1 || level > 6 {
		return 0
	}
	return level
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
