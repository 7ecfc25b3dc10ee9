package assemble

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/dgallion1/epubhtml/internal/book"
)

var documentTmpl = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Meta.Title}}</title>
    <meta charset="utf-8">
    <meta name="author" content="{{.Meta.Author}}">
    <style>
      body { font-family: serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 20px; }
      .chapter { margin-bottom: 3em; page-break-before: auto; }
      .chapter-title { color: #333; border-bottom: 2px solid #eee; padding-bottom: 0.5em; margin-bottom: 1em; }
      p { margin-bottom: 1em; text-align: justify; }
      img { max-width: 100%; height: auto; }
    </style>
</head>
<body>
{{- range .Chapters}}
<div class="chapter" data-chapter-id="{{.ID}}">
<h2 class="chapter-title">{{.Title}}</h2>
{{.Content}}
</div>
{{- end}}
</body>
</html>
`))

// chapterView carries already-clean markup into the template without re-escaping.
type chapterView struct {
	ID      string
	Title   template.HTML
	Content template.HTML
}

// Document renders the combined HTML page, one block per chapter in slice order.
func Document(meta book.Meta, chapters []book.Chapter) ([]byte, error) {
	views := make([]chapterView, len(chapters))
	for i, ch := range chapters {
		views[i] = chapterView{
			ID:      ch.ID,
			Title:   template.HTML(ch.Title),
			Content: template.HTML(ch.Content),
		}
	}

	var buf bytes.Buffer
	err := documentTmpl.Execute(&buf, struct {
		Meta     book.Meta
		Chapters []chapterView
	}{meta, views})
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}

// Index projects chapters to the structure index, preserving order.
func Index(chapters []book.Chapter) book.StructureIndex {
	summaries := make([]book.Summary, 0, len(chapters))
	for _, ch := range chapters {
		summaries = append(summaries, ch.Summary())
	}
	return book.StructureIndex{Type: book.IndexType, Chapters: summaries}
}

// IndexJSON encodes idx with two-space indentation and a trailing newline.
// HTML characters in titles are written literally.
func IndexJSON(idx book.StructureIndex) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(idx); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return buf.Bytes(), nil
}
