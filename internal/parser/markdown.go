package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/yuin/goldmark"
)

// MarkdownParser handles Markdown chapter files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	text, err := decodeText(src)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
