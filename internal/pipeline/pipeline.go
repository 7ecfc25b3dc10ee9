package pipeline

import (
	"cmp"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/epubhtml/internal/assemble"
	"github.com/dgallion1/epubhtml/internal/book"
	"github.com/dgallion1/epubhtml/internal/chapter"
	"github.com/dgallion1/epubhtml/internal/cleanup"
	"github.com/dgallion1/epubhtml/internal/collector"
	"github.com/dgallion1/epubhtml/internal/config"
	"github.com/dgallion1/epubhtml/internal/epub"
	"github.com/dgallion1/epubhtml/internal/parser"
	"github.com/oklog/ulid"
)

// Failure records a source file that produced no chapter.
type Failure struct {
	File string
	Err  error
}

// Result is everything one conversion run produced.
type Result struct {
	RunID     string
	Meta      book.Meta
	Sources   int
	Chapters  []book.Chapter
	Failures  []Failure
	Index     book.StructureIndex
	HTML      []byte
	IndexJSON []byte
	WordCount int

	HTMLDigest  string
	IndexDigest string
}

// outcome is the per-file result of extraction.
type outcome struct {
	src     book.SourceFile
	chapter book.Chapter
	err     error
}

// Build collects, extracts and assembles in memory. Per-file failures are
// logged and recorded on the Result; they never fail the build.
func Build(cfg config.Config, log *slog.Logger) (*Result, error) {
	res := &Result{RunID: newRunID()}
	log = log.With("run_id", res.RunID)

	cleaner := cleanup.New(cleanup.Options{
		SectionMarker: cfg.SectionMarker,
		DivMarker:     cfg.DivMarker,
		Mode:          cleanup.Mode(cfg.StripMode),
	})
	ex := chapter.NewExtractor(cleaner, parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext})

	files, archiveMeta, done := collectSources(cfg, cleaner, log)
	defer done()
	res.Sources = len(files)
	res.Meta = documentMeta(cfg, archiveMeta)
	log.Info("collected sources", "input", cfg.InputDir, "count", len(files))

	for _, o := range extractAll(ex, files) {
		if o.err != nil {
			log.Error("chapter extraction failed", "file", o.src.Name, "error", o.err)
			res.Failures = append(res.Failures, Failure{File: o.src.Name, Err: o.err})
			continue
		}
		log.Debug("chapter extracted", "file", o.src.Name, "id", o.chapter.ID, "title", o.chapter.Title)
		res.Chapters = append(res.Chapters, o.chapter)
	}

	var err error
	res.HTML, err = assemble.Document(res.Meta, res.Chapters)
	if err != nil {
		return nil, err
	}
	res.Index = assemble.Index(res.Chapters)
	res.IndexJSON, err = assemble.IndexJSON(res.Index)
	if err != nil {
		return nil, err
	}
	res.WordCount = assemble.WordCount(res.HTML)
	res.HTMLDigest = ContentHashHex(res.HTML)
	res.IndexDigest = ContentHashHex(res.IndexJSON)

	log.Info("build complete",
		"chapters", len(res.Chapters),
		"failed", len(res.Failures),
		"words", res.WordCount,
	)
	return res, nil
}

// collectSources lists chapter sources. A directory is filtered and sorted by
// name; an .epub archive yields its spine in reading order minus license
// pages, plus its metadata. done releases the archive after extraction.
func collectSources(cfg config.Config, cleaner *cleanup.Cleaner, log *slog.Logger) ([]book.SourceFile, *book.Meta, func()) {
	if !epub.IsArchive(cfg.InputDir) {
		files, err := collector.Collect(cfg.InputDir, cfg.FilenameMarker, cfg.Extension)
		if err != nil {
			log.Warn("collect sources failed, continuing with none", "dir", cfg.InputDir, "error", err)
		}
		return files, nil, func() {}
	}

	a, err := epub.Open(cfg.InputDir)
	if err != nil {
		log.Warn("open epub failed, continuing with none", "file", cfg.InputDir, "error", err)
		return nil, nil, func() {}
	}
	files, skipped := a.ContentSources(cfg.FilenameMarker, cfg.Extension, cleaner.Clean)
	for _, name := range skipped {
		log.Info("skipped license page", "file", name)
	}
	meta := a.Meta()
	return files, &meta, func() {
		if err := a.Close(); err != nil {
			log.Warn("close epub failed", "file", cfg.InputDir, "error", err)
		}
	}
}

// documentMeta picks the head title and author. Configured values win; an
// archive's own metadata fills in otherwise, falling back to placeholders.
func documentMeta(cfg config.Config, archive *book.Meta) book.Meta {
	meta := book.Meta{Title: cfg.BookTitle, Author: cfg.BookAuthor}
	if archive == nil {
		return meta
	}
	if !cfg.BookTitleSet {
		meta.Title = cmp.Or(archive.Title, "Untitled")
	}
	if !cfg.BookAuthorSet {
		meta.Author = cmp.Or(archive.Author, "Unknown")
	}
	return meta
}

// extractAll processes files in order. Positions follow the source listing,
// so a failed file leaves a gap instead of renumbering later chapters.
func extractAll(ex *chapter.Extractor, files []book.SourceFile) []outcome {
	out := make([]outcome, 0, len(files))
	for i, src := range files {
		ch, err := ex.Extract(src, i+1)
		out = append(out, outcome{src: src, chapter: ch, err: err})
	}
	return out
}

// Write stores both outputs, creating parent directories as needed. Both
// files are staged next to their targets before either is renamed into
// place, so a failure while writing leaves the previous pair untouched.
func Write(res *Result, cfg config.Config) error {
	htmlTmp, err := stageFile(cfg.OutputHTMLPath, res.HTML)
	if err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	indexTmp, err := stageFile(cfg.OutputIndexPath, res.IndexJSON)
	if err != nil {
		os.Remove(htmlTmp)
		return fmt.Errorf("write index: %w", err)
	}

	if err := os.Rename(htmlTmp, cfg.OutputHTMLPath); err != nil {
		os.Remove(htmlTmp)
		os.Remove(indexTmp)
		return fmt.Errorf("write html: %w", err)
	}
	if err := os.Rename(indexTmp, cfg.OutputIndexPath); err != nil {
		os.Remove(indexTmp)
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Run builds and writes.
func Run(cfg config.Config, log *slog.Logger) (*Result, error) {
	res, err := Build(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := Write(res, cfg); err != nil {
		return res, err
	}
	log.Info("outputs written",
		"run_id", res.RunID,
		"html", cfg.OutputHTMLPath,
		"index", cfg.OutputIndexPath,
		"html_sha256", res.HTMLDigest,
	)
	return res, nil
}

// Chapter looks up a built chapter by ID.
func (r *Result) Chapter(id string) (book.Chapter, bool) {
	for _, ch := range r.Chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return book.Chapter{}, false
}

// stageFile writes data to a temp file in path's directory and returns its name.
func stageFile(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

func newRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
