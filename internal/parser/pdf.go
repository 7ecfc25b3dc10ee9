package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// PDFParser handles PDF chapter files. It tries the Go library first,
// then falls back to pdftotext if enabled. PDFs carry no heading markup,
// so the result is paragraphs only.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (string, error) {
	// ledongthuc/pdf opens by path.
	tmp, err := os.CreateTemp("", "epubhtml-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("spool %s: %w", filename, err)
	}
	tmp.Close()

	text, err := readPDFText(tmpPath)
	if err != nil && p.FallbackPdftotext {
		text, err = runPdftotext(tmpPath)
	}
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	return paragraphsHTML(text), nil
}

// paragraphsHTML wraps blank-line separated blocks of text (pages are
// separated by form feeds) in escaped <p> elements.
func paragraphsHTML(text string) string {
	var out strings.Builder
	for _, page := range strings.Split(text, "\f") {
		for _, block := range strings.Split(page, "\n\n") {
			block = strings.Join(strings.Fields(block), " ")
			if block == "" {
				continue
			}
			fmt.Fprintf(&out, "<p>%s</p>\n", html.EscapeString(block))
		}
	}
	return out.String()
}

func readPDFText(path string) (text string, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\f"), nil
}

func runPdftotext(path string) (string, error) {
	out, err := exec.Command("pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
