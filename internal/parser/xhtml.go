package parser

import (
	"fmt"
	"io"
)

// XHTMLParser handles XHTML/HTML chapter files. The markup is returned as-is.
type XHTMLParser struct{}

func (p *XHTMLParser) Parse(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	return decodeText(data)
}
