package pipeline

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/dgallion1/epubhtml/internal/book"
	"github.com/dgallion1/epubhtml/internal/config"
	"github.com/dgallion1/epubhtml/internal/parser"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func writeInput(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// testConfig lays out a small book: a boilerplate-wrapped front page, a file
// that is not UTF-8, and two chapters. Files without the marker are ignored.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	in := t.TempDir()
	out := t.TempDir()

	writeInput(t, in, "2701-h-0.xhtml", `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" lang="en"><body>
<section class="pg-boilerplate pgheader"><h2>The Project Gutenberg eBook</h2></section>
<h1>MOBY-DICK; or, THE WHALE.</h1>
</body></html>`)
	writeInput(t, in, "2701-h-1.xhtml", "<p>\xff\xfe broken</p>")
	writeInput(t, in, "2701-h-2.xhtml", `<html><body><h2>CHAPTER 1. Loomings.</h2><p>Call me Ishmael.</p></body></html>`)
	writeInput(t, in, "2701-h-3.xhtml", `<html><body><p>No heading here.</p><div id="pg-footer">license</div></body></html>`)
	writeInput(t, in, "cover.xhtml", `<h1>Cover</h1>`)

	cfg := config.Default()
	cfg.InputDir = in
	cfg.OutputHTMLPath = filepath.Join(out, "book", "content.html")
	cfg.OutputIndexPath = filepath.Join(out, "book", "structure.json")
	return cfg
}

func TestBuild_SkipsFailuresWithoutRenumbering(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))

	res, err := Build(testConfig(t), log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Sources != 4 {
		t.Errorf("expected 4 sources, got %d", res.Sources)
	}
	want := []book.Summary{
		{ID: "chapter-1", Title: "Chapter 1 - MOBY-DICK; or, THE WHALE.", Order: 1},
		{ID: "chapter-3", Title: "Chapter 1. Loomings.", Order: 3},
		{ID: "chapter-4", Title: "Chapter 4", Order: 4},
	}
	if len(res.Index.Chapters) != len(want) {
		t.Fatalf("expected %d chapters, got %d: %+v", len(want), len(res.Index.Chapters), res.Index.Chapters)
	}
	for i, w := range want {
		if res.Index.Chapters[i] != w {
			t.Errorf("chapter[%d]: expected %+v, got %+v", i, w, res.Index.Chapters[i])
		}
	}

	if len(res.Failures) != 1 || res.Failures[0].File != "2701-h-1.xhtml" {
		t.Fatalf("expected one failure for 2701-h-1.xhtml, got %+v", res.Failures)
	}
	if !errors.Is(res.Failures[0].Err, parser.ErrNotUTF8) {
		t.Errorf("expected ErrNotUTF8, got %v", res.Failures[0].Err)
	}
	if !strings.Contains(logs.String(), `"msg":"chapter extraction failed"`) ||
		!strings.Contains(logs.String(), `"file":"2701-h-1.xhtml"`) {
		t.Errorf("expected failure log line naming the file, got %s", logs.String())
	}

	if strings.Contains(string(res.HTML), "Project Gutenberg") || strings.Contains(string(res.HTML), "license") {
		t.Error("expected boilerplate stripped from document")
	}
	if res.WordCount == 0 {
		t.Error("expected non-zero word count")
	}
}

var blockIDRe = regexp.MustCompile(`<div class="chapter" data-chapter-id="([^"]+)">`)

func TestBuild_DocumentAndIndexAgree(t *testing.T) {
	res, err := Build(testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var idx book.StructureIndex
	if err := json.Unmarshal(res.IndexJSON, &idx); err != nil {
		t.Fatalf("invalid index json: %v", err)
	}
	if idx.Type != "epub" {
		t.Errorf("expected type %q, got %q", "epub", idx.Type)
	}

	blocks := blockIDRe.FindAllStringSubmatch(string(res.HTML), -1)
	if len(blocks) != len(idx.Chapters) {
		t.Fatalf("expected %d blocks, got %d", len(idx.Chapters), len(blocks))
	}
	prev := 0
	for i, b := range blocks {
		if b[1] != idx.Chapters[i].ID {
			t.Errorf("block %d: expected id %q, got %q", i, idx.Chapters[i].ID, b[1])
		}
		if idx.Chapters[i].Order <= prev {
			t.Errorf("chapter %d: order %d not increasing", i, idx.Chapters[i].Order)
		}
		prev = idx.Chapters[i].Order
	}
	if idx.Chapters[0].Order != 1 {
		t.Errorf("expected first order 1, got %d", idx.Chapters[0].Order)
	}
}

func TestRun_Idempotent(t *testing.T) {
	cfg := testConfig(t)

	first, err := Run(cfg, discardLogger())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	html1, _ := os.ReadFile(cfg.OutputHTMLPath)
	index1, _ := os.ReadFile(cfg.OutputIndexPath)

	second, err := Run(cfg, discardLogger())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	html2, _ := os.ReadFile(cfg.OutputHTMLPath)
	index2, _ := os.ReadFile(cfg.OutputIndexPath)

	if !bytes.Equal(html1, html2) || !bytes.Equal(index1, index2) {
		t.Error("expected byte-identical outputs across runs")
	}
	if first.HTMLDigest != second.HTMLDigest || first.IndexDigest != second.IndexDigest {
		t.Error("expected identical digests across runs")
	}
	if first.RunID == second.RunID {
		t.Error("expected distinct run ids")
	}
	if ContentHashHex(html2) != second.HTMLDigest {
		t.Error("expected digest to match written html")
	}
}

func TestRun_ZeroChapters(t *testing.T) {
	cfg := config.Default()
	cfg.InputDir = filepath.Join(t.TempDir(), "missing")
	out := t.TempDir()
	cfg.OutputHTMLPath = filepath.Join(out, "content.html")
	cfg.OutputIndexPath = filepath.Join(out, "structure.json")

	res, err := Run(cfg, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Chapters) != 0 {
		t.Errorf("expected 0 chapters, got %d", len(res.Chapters))
	}

	index, err := os.ReadFile(cfg.OutputIndexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if string(index) != "{\n  \"type\": \"epub\",\n  \"chapters\": []\n}\n" {
		t.Errorf("unexpected empty index %q", index)
	}
	html, err := os.ReadFile(cfg.OutputHTMLPath)
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	if !strings.HasPrefix(string(html), "<!DOCTYPE html>") || !strings.HasSuffix(string(html), "</html>\n") {
		t.Errorf("expected well-formed empty document, got %q", html)
	}
}

func TestRun_WriteFailure(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.OutputHTMLPath = filepath.Join(blocker, "content.html")

	res, err := Run(cfg, discardLogger())
	if err == nil {
		t.Fatal("expected write error")
	}
	if !strings.Contains(err.Error(), "write html") {
		t.Errorf("expected write html error, got %v", err)
	}
	if res == nil || len(res.Chapters) == 0 {
		t.Error("expected build result alongside write error")
	}
}

func TestRun_IndexWriteFailureKeepsPreviousOutputs(t *testing.T) {
	cfg := testConfig(t)
	if _, err := Run(cfg, discardLogger()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	oldHTML, err := os.ReadFile(cfg.OutputHTMLPath)
	if err != nil {
		t.Fatalf("read html: %v", err)
	}

	// A new chapter changes the document; the index cannot be written.
	writeInput(t, cfg.InputDir, "2701-h-4.xhtml", `<h2>CHAPTER 2. The Carpet-Bag.</h2>`)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.OutputIndexPath = filepath.Join(blocker, "structure.json")

	_, err = Run(cfg, discardLogger())
	if err == nil || !strings.Contains(err.Error(), "write index") {
		t.Fatalf("expected write index error, got %v", err)
	}
	html, err := os.ReadFile(cfg.OutputHTMLPath)
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	if !bytes.Equal(html, oldHTML) {
		t.Error("expected previous content.html to be left in place")
	}

	entries, err := os.ReadDir(filepath.Dir(cfg.OutputHTMLPath))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("expected staged file cleaned up, found %s", e.Name())
		}
	}
}

func TestResult_Chapter(t *testing.T) {
	res, err := Build(testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch, ok := res.Chapter("chapter-3")
	if !ok {
		t.Fatal("expected chapter-3")
	}
	if !strings.Contains(ch.Content, "Call me Ishmael.") {
		t.Errorf("unexpected content %q", ch.Content)
	}
	if _, ok := res.Chapter("chapter-2"); ok {
		t.Error("expected failed position chapter-2 to be absent")
	}
}

func TestContentHashHex(t *testing.T) {
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got := ContentHashHex([]byte("hello world")); got != want {
		t.Errorf("expected hash %q, got %q", want, got)
	}
}

func writeArchive(t *testing.T, files [][2]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "moby-dick.epub")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, file := range files {
		w, err := zw.Create(file[0])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, file[1]); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func epubConfig(t *testing.T) config.Config {
	t.Helper()
	archive := writeArchive(t, [][2]string{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", `<container><rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`},
		{"OEBPS/content.opf", `<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
<metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Moby-Dick; or, The Whale</dc:title><dc:creator>Herman Melville</dc:creator></metadata>
<manifest>
<item id="h0" href="2701-h-0.htm.xhtml"/><item id="h2" href="2701-h-2.htm.xhtml"/>
<item id="h10" href="2701-h-10.htm.xhtml"/><item id="lic" href="2701-h-99.htm.xhtml"/>
</manifest>
<spine><itemref idref="h0"/><itemref idref="h2"/><itemref idref="h10"/><itemref idref="lic"/></spine>
</package>`},
		{"OEBPS/2701-h-0.htm.xhtml", `<?xml version="1.0" encoding="utf-8"?><html xmlns="http://www.w3.org/1999/xhtml"><head><title/></head><body>
<section class="pg-boilerplate pgheader">This eBook is under the terms of the Project Gutenberg License.</section>
<h1>MOBY-DICK; or, THE WHALE.</h1></body></html>`},
		{"OEBPS/2701-h-2.htm.xhtml", `<html><body><h2>CHAPTER 1. Loomings.</h2><p>Call me Ishmael.</p></body></html>`},
		{"OEBPS/2701-h-10.htm.xhtml", `<html><body><h2>CHAPTER 2. The Carpet-Bag.</h2></body></html>`},
		{"OEBPS/2701-h-99.htm.xhtml", `<html><body><p>*** START OF THE PROJECT GUTENBERG LICENSE ***</p></body></html>`},
	})

	out := t.TempDir()
	cfg := config.Default()
	cfg.InputDir = archive
	cfg.BookTitle, cfg.BookAuthor = "", ""
	cfg.OutputHTMLPath = filepath.Join(out, "content.html")
	cfg.OutputIndexPath = filepath.Join(out, "structure.json")
	return cfg
}

func TestBuild_FromEPUBArchive(t *testing.T) {
	res, err := Run(epubConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []book.Summary{
		{ID: "chapter-1", Title: "Chapter 1 - MOBY-DICK; or, THE WHALE.", Order: 1},
		{ID: "chapter-2", Title: "Chapter 1. Loomings.", Order: 2},
		{ID: "chapter-3", Title: "Chapter 2. The Carpet-Bag.", Order: 3},
	}
	if len(res.Index.Chapters) != len(want) {
		t.Fatalf("expected %d chapters, got %+v", len(want), res.Index.Chapters)
	}
	for i, w := range want {
		if res.Index.Chapters[i] != w {
			t.Errorf("chapter[%d]: expected %+v, got %+v", i, w, res.Index.Chapters[i])
		}
	}
	if len(res.Failures) != 0 {
		t.Errorf("expected no failures, got %+v", res.Failures)
	}

	doc := string(res.HTML)
	if !strings.Contains(doc, "<title>Moby-Dick; or, The Whale</title>") {
		t.Error("expected archive title in document head")
	}
	if !strings.Contains(doc, `<meta name="author" content="Herman Melville">`) {
		t.Error("expected archive author in document head")
	}
	if strings.Contains(doc, "Gutenberg") {
		t.Error("expected license text absent from document")
	}
}

func TestBuild_ConfiguredMetaOverridesArchive(t *testing.T) {
	cfg := epubConfig(t)
	cfg.BookTitle, cfg.BookTitleSet = "The Whale", true

	res, err := Build(cfg, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Meta.Title != "The Whale" {
		t.Errorf("expected configured title, got %q", res.Meta.Title)
	}
	if res.Meta.Author != "Herman Melville" {
		t.Errorf("expected archive author, got %q", res.Meta.Author)
	}
}

func TestDocumentMeta_Placeholders(t *testing.T) {
	cfg := config.Default()
	got := documentMeta(cfg, &book.Meta{})
	if got.Title != "Untitled" || got.Author != "Unknown" {
		t.Errorf("expected placeholders, got %+v", got)
	}
	if got := documentMeta(cfg, nil); got.Title != cfg.BookTitle {
		t.Errorf("expected configured title for directory input, got %q", got.Title)
	}
}

func TestBuild_UnreadableArchive(t *testing.T) {
	cfg := epubConfig(t)
	if err := os.WriteFile(cfg.InputDir, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := Build(cfg, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Chapters) != 0 || res.Index.Chapters == nil {
		t.Errorf("expected empty, well-formed result, got %+v", res.Index)
	}
}
