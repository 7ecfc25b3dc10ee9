package chapter

import (
	"fmt"

	"github.com/dgallion1/epubhtml/internal/book"
	"github.com/dgallion1/epubhtml/internal/cleanup"
	"github.com/dgallion1/epubhtml/internal/parser"
)

// Extractor turns one source file into a Chapter.
type Extractor struct {
	cleaner *cleanup.Cleaner
	opts    parser.Options
}

func NewExtractor(cleaner *cleanup.Cleaner, opts parser.Options) *Extractor {
	return &Extractor{cleaner: cleaner, opts: opts}
}

// Extract reads, cleans and titles src. position is the file's 1-based rank
// in the sorted source listing and becomes the chapter's order and ID.
func (e *Extractor) Extract(src book.SourceFile, position int) (ch book.Chapter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while extracting %s: %v", src.Name, r)
		}
	}()

	p, err := parser.ForFile(src.Name, e.opts)
	if err != nil {
		return book.Chapter{}, err
	}

	markup, err := e.parseFile(p, src)
	if err != nil {
		return book.Chapter{}, err
	}

	content := e.cleaner.Clean(markup)
	return book.Chapter{
		ID:      book.ChapterID(position),
		Title:   Title(content, position),
		Content: content,
		Order:   position,
	}, nil
}

func (e *Extractor) parseFile(p parser.Parser, src book.SourceFile) (string, error) {
	f, err := src.Open()
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	markup, err := p.Parse(f, src.Name)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", src.Name, err)
	}
	return markup, nil
}
