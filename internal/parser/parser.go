package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrNotUTF8 is returned when a chapter source is not valid UTF-8 text.
	ErrNotUTF8 = errors.New("parser: source is not valid UTF-8")

	// ErrUnsupported is returned by ForFile for unknown extensions.
	ErrUnsupported = errors.New("parser: unsupported file extension")
)

// Parser converts one chapter source into a markup string.
type Parser interface {
	Parse(r io.Reader, filename string) (string, error)
}

// Options tunes format-specific parsers.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions a chapter source may have.
var SupportedExtensions = map[string]bool{
	".xhtml":    true,
	".html":     true,
	".htm":      true,
	".md":       true,
	".markdown": true,
	".docx":     true,
	".pdf":      true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xhtml", ".html", ".htm":
		return &XHTMLParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText validates data as UTF-8 and strips a leading BOM.
func decodeText(data []byte) (string, error) {
	if len(data) >= 3 && data[0] == utf8BOM[0] && data[1] == utf8BOM[1] && data[2] == utf8BOM[2] {
		data = data[3:]
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: invalid byte sequence at offset %d", ErrNotUTF8, invalidOffset(data))
	}
	return string(data), nil
}

func invalidOffset(data []byte) int {
	for off := 0; off < len(data); {
		r, size := utf8.DecodeRune(data[off:])
		if r == utf8.RuneError && size <= 1 {
			return off
		}
		off += size
	}
	return len(data)
}
